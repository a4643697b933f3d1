package delivery

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/gardar/pagestamp/pkg/stamp"
)

// ZipName is the archive name offered on the index page.
const ZipName = "batch.zip"

// Handler serves a batch for download:
//
//	GET /                 index page linking every file
//	GET /files/{name}     one output as an attachment
//	GET /batch.zip        every output in one archive
type Handler struct {
	Title      string
	Outputs    []stamp.Output
	OnDownload func(name string) // Called after a file was sent

	mux *http.ServeMux
}

// NewHandler returns a handler serving outputs.
func NewHandler(title string, outputs []stamp.Output, onDownload func(string)) *Handler {
	h := &Handler{Title: title, Outputs: outputs, OnDownload: onDownload}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.serveIndex)
	mux.HandleFunc("GET /files/{name}", h.serveFile)
	mux.HandleFunc("GET /"+ZipName, h.serveZip)
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := html.Render(&buf, indexPage(h.Title, h.Outputs)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	for _, o := range h.Outputs {
		if o.Name != name {
			continue
		}
		setAttachment(w, o.Name, "application/pdf", len(o.Data))
		if _, err := w.Write(o.Data); err == nil && h.OnDownload != nil {
			h.OnDownload(o.Name)
		}
		return
	}
	http.NotFound(w, r)
}

func (h *Handler) serveZip(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, h.Outputs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	setAttachment(w, ZipName, "application/zip", buf.Len())
	if _, err := w.Write(buf.Bytes()); err == nil && h.OnDownload != nil {
		for _, o := range h.Outputs {
			h.OnDownload(o.Name)
		}
	}
}

func setAttachment(w http.ResponseWriter, name, contentType string, size int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(size))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
}

// indexPage builds the download page as a node tree so every name is
// escaped by the renderer.
func indexPage(title string, outputs []stamp.Output) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	root.AppendChild(head)
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.AppendChild(meta)
	head.AppendChild(withText(element(atom.Title), title))

	body := element(atom.Body)
	root.AppendChild(body)
	body.AppendChild(withText(element(atom.H1), title))

	if len(outputs) == 0 {
		body.AppendChild(withText(element(atom.P), "No stamped documents."))
		return doc
	}

	list := element(atom.Ul)
	body.AppendChild(list)
	for _, o := range outputs {
		li := element(atom.Li)
		a := link("files/"+url.PathEscape(o.Name), o.Name)
		li.AppendChild(a)
		label := fmt.Sprintf(" page %d", o.Page)
		if o.Material != "" {
			label += ", " + o.Material
		}
		li.AppendChild(&html.Node{Type: html.TextNode, Data: label})
		list.AppendChild(li)
	}
	p := element(atom.P)
	p.AppendChild(link(ZipName, "Download all as "+ZipName))
	body.AppendChild(p)
	return doc
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func link(href, text string) *html.Node {
	a := element(atom.A)
	a.Attr = []html.Attribute{{Key: "href", Val: href}, {Key: "download", Val: ""}}
	return withText(a, text)
}
