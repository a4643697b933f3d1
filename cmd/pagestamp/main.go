// pagestamp is a command-line tool for stamping task identifiers onto drawings.
//
// It loads a PDF or a raster image (JPEG, PNG, WebP), assigns a task suffix
// and material to pages, checks that no two pages share an identifier, and
// writes one stamped single-page PDF per assigned page. Each stamp carries a
// QR code (or Code 128 barcode) encoding the full identifier, the identifier
// text and the material label, drawn in a "Task Stamp" layer.
//
// Usage:
//
//	pagestamp -input drawing.pdf -head J1001 -assign 1=1:SKS3 -assign 2=2 -output ./out
//
// Required flags:
//
//	-input string        Path to the source PDF or image
//
// Assignment options:
//
//	-head string         Head identifier shared by all pages
//	-assign value        page=suffix[:material], repeatable; two materials as SKS3+AL
//	-assignments string  YAML file with head, order fields and per-page assignments
//
// Output options (at least one unless -preview is set):
//
//	-output string       Directory to write the stamped PDFs to
//	-zip string          Path of a zip archive holding all stamped PDFs
//	-serve string        Address to serve a download page on, e.g. :8080
//	-submit              Submit the batch to the task service
//
// Processing options:
//
//	-config string       Path to the config YAML file
//	-symbol string       qr or code128 (overrides the config)
//	-anchor string       top-left, top-right, bottom-left or bottom-right
//	-force               Stamp even if the PDF already has a stamp layer
//	-overwrite           Overwrite existing output files
//	-debug               Verbose logging and layout outlines
//
// Preview options:
//
//	-preview string      Write a PNG preview of one page with its stamp and exit
//	-preview-page int    Page to preview (default 1)
//	-scale float         Preview scale (default 1)
//	-rotate int          Preview rotation in degrees (default 0)
//
// Examples:
//
// Stamp two pages of a drawing:
//
//	pagestamp -input drawing.pdf -head J1001 -assign 1=1:SKS3 -assign 2=2 -output ./out
//
// Stamp a photo and submit it:
//
//	PAGESTAMP_TOKEN=... pagestamp -config pagestamp.yaml -input part.jpg -head S200 -assign 1=:AL -submit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gardar/pagestamp/pkg/assign"
	"github.com/gardar/pagestamp/pkg/canvas"
	"github.com/gardar/pagestamp/pkg/document"
	"github.com/gardar/pagestamp/pkg/session"
	"github.com/gardar/pagestamp/pkg/stamp"
	"github.com/gardar/pagestamp/pkg/symbol"
	"github.com/gardar/pagestamp/pkg/taskapi"
)

func main() {
	inputPath := flag.String("input", "", "Path to the source PDF or image")
	configPath := flag.String("config", "", "Path to the config YAML file")
	head := flag.String("head", "", "Head identifier shared by all pages")
	assignmentsPath := flag.String("assignments", "", "YAML file with per-page assignments")
	var assigns assignFlags
	flag.Var(&assigns, "assign", "Page assignment page=suffix[:material] (repeatable)")

	outputDir := flag.String("output", "", "Directory to write the stamped PDFs to")
	zipPath := flag.String("zip", "", "Path of a zip archive holding all stamped PDFs")
	serveAddr := flag.String("serve", "", "Address to serve a download page on")
	submit := flag.Bool("submit", false, "Submit the batch to the task service")
	poNumber := flag.String("po", "", "PO number sent with -submit")
	qtNumber := flag.String("qt", "", "QT number sent with -submit")
	customer := flag.String("customer", "", "Customer sent with -submit")

	symbolKind := flag.String("symbol", "", "Symbology: qr or code128")
	anchor := flag.String("anchor", "", "Stamp corner: top-left, top-right, bottom-left, bottom-right")
	force := flag.Bool("force", false, "Stamp even if the PDF already has a stamp layer")
	overwrite := flag.Bool("overwrite", false, "Overwrite existing output files")
	debug := flag.Bool("debug", false, "Enable debug mode")

	previewPath := flag.String("preview", "", "Write a PNG preview of one page and exit")
	previewPage := flag.Int("preview-page", 1, "Page to preview (1-based)")
	scale := flag.Float64("scale", 1, "Preview scale")
	rotate := flag.Int("rotate", 0, "Preview rotation in degrees")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -input flag is required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *previewPath == "" && *outputDir == "" && *zipPath == "" && *serveAddr == "" && !*submit {
		fmt.Fprintln(os.Stderr, "Error: At least one of -output, -zip, -serve, -submit or -preview must be provided")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *symbolKind != "" {
		if cfg.Stamp.Symbol, err = symbol.ParseKind(*symbolKind); err != nil {
			log.Fatalf("Invalid -symbol: %v", err)
		}
	}
	if *anchor != "" {
		if cfg.Stamp.Anchor, err = stamp.ParseAnchor(*anchor); err != nil {
			log.Fatalf("Invalid -anchor: %v", err)
		}
	}
	if *debug {
		cfg.Stamp.Debug = true
		cfg.LogLevel = slog.LevelDebug
	}

	var af *assignmentFile
	if *assignmentsPath != "" {
		if af, err = loadAssignments(*assignmentsPath); err != nil {
			log.Fatalf("Failed to load assignments: %v", err)
		}
		if *head == "" {
			*head = af.Head
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	cfg.Loader.Logger = os.Stderr
	cfg.Stamp.Logger = os.Stderr

	ctrlCfg := session.Config{
		Loader:     document.NewLoader(cfg.Loader),
		Compositor: stamp.NewCompositor(cfg.Stamp, symbol.NewCache()),
		Materials:  cfg.Materials,
		Force:      *force,
		Logger:     logger,
	}
	if *submit {
		client, err := taskapi.New(cfg.TaskAPI)
		if err != nil {
			log.Fatalf("Task service: %v", err)
		}
		ctrlCfg.Submitter = client
	}
	ctrl := session.NewController(ctrlCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	s, err := ctrl.Open(ctx, filepath.Base(*inputPath), source, *head)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *inputPath, err)
	}
	defer s.Close()
	fmt.Printf("Loaded %s: %d page(s)\n", *inputPath, s.Document().PageCount())

	if af != nil {
		if err := applyAssignments(s, af.Pages); err != nil {
			log.Fatalf("Invalid assignment: %v", err)
		}
	}
	if err := applyAssignments(s, assigns); err != nil {
		log.Fatalf("Invalid assignment: %v", err)
	}

	if *previewPath != "" {
		if err := writePreview(ctx, s, *previewPath, *previewPage, *scale, *rotate, *overwrite); err != nil {
			log.Fatalf("Preview failed: %v", err)
		}
		fmt.Println("Preview written:", *previewPath)
		return
	}

	outputs, err := s.Stamp(ctx)
	if err != nil {
		var dup *assign.DuplicateIdentifierError
		if errors.As(err, &dup) {
			for _, id := range dup.Identifiers {
				fmt.Fprintf(os.Stderr, "  %s used on pages %v\n", id, dup.Pages[id])
			}
		}
		log.Fatalf("Stamping failed: %v", err)
	}
	if len(outputs) == 0 {
		fmt.Println("No page has an assignment; nothing to stamp.")
		return
	}
	fmt.Printf("Stamped %d page(s)\n", len(outputs))

	// Local delivery first so a failed submission never loses the batch.
	if *outputDir != "" {
		paths, err := s.Download(*outputDir, *overwrite)
		if err != nil {
			log.Fatalf("Failed to write outputs: %v", err)
		}
		for _, p := range paths {
			fmt.Println("  wrote", p)
		}
	}
	if *zipPath != "" {
		if err := writeZip(s, *zipPath, *overwrite); err != nil {
			log.Fatalf("Failed to write archive: %v", err)
		}
		fmt.Println("  wrote", *zipPath)
	}

	if *submit {
		orderHead := taskapi.Head{PONumber: *poNumber, QTNumber: *qtNumber, Customer: *customer}
		if af != nil {
			orderHead = mergeHead(af.head(), orderHead)
		}
		if _, err := s.Submit(ctx, orderHead); err != nil {
			if *outputDir == "" && *zipPath == "" && *serveAddr == "" {
				fallback := filepath.Join(".", s.Head()+"-stamped")
				if _, werr := s.Download(fallback, *overwrite); werr == nil {
					fmt.Println("Batch saved to", fallback)
				}
			}
			log.Fatalf("Submission failed: %v", err)
		}
		fmt.Println("Batch submitted to the task service")
	}

	if *serveAddr != "" {
		if err := serve(ctx, s, *serveAddr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}

	if !s.AllPrinted() && *serveAddr != "" {
		fmt.Println("Warning: not every stamped document was downloaded")
	}
}

// mergeHead prefers order fields given on the command line.
func mergeHead(file, flags taskapi.Head) taskapi.Head {
	if flags.PONumber != "" {
		file.PONumber = flags.PONumber
	}
	if flags.QTNumber != "" {
		file.QTNumber = flags.QTNumber
	}
	if flags.Customer != "" {
		file.Customer = flags.Customer
	}
	return file
}

func writePreview(ctx context.Context, s *session.Session, path string, page int, scale float64, rotation int, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s already exists, use -overwrite to replace it", path)
	}
	surface, ok, err := s.Preview(ctx, page, canvas.Params{Scale: scale, Rotation: rotation})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("preview was cancelled")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, surface.Image); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeZip(s *session.Session, path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	if err := s.DownloadZip(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func serve(ctx context.Context, s *session.Session, addr string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	fmt.Printf("Serving downloads on http://%s/ (Ctrl+C to stop)\n", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
