package document

import (
	"fmt"
	"regexp"
	"strings"
)

// ocgPatterns match optional content group names in raw PDF bytes. fpdf
// writes "/Type /OCG /Name (...)"; the others cover writers that order or
// space the dictionary differently.
var ocgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*\(([^)]+)\)`),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*\(([^)]+)\)`),
	regexp.MustCompile(`<</Type/OCG/Name\(([^)]+)\)`),
	regexp.MustCompile(`/Name\s*\(([^)]+)\)[^<>]{0,50}?/Type\s*/OCG`),
}

// detectPDFLayers finds optional content group names in the raw PDF data.
// Compressed object streams hide their dictionaries from this scan, so an
// empty result does not prove the absence of layers.
func detectPDFLayers(pdfData []byte) ([]string, error) {
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("empty PDF data")
	}

	content := string(pdfData)
	var layers []string
	for _, re := range ocgPatterns {
		for _, match := range re.FindAllStringSubmatch(content, -1) {
			if len(match) >= 2 {
				layers = append(layers, unescapePDFString(match[1]))
			}
		}
	}

	// Names written as UTF-16 carry a BOM
	for i, layer := range layers {
		if len(layer) >= 2 && layer[0] == '\xfe' && layer[1] == '\xff' {
			decoded, err := decodeUTF16BE([]byte(layer))
			if err == nil {
				layers[i] = decoded
			}
		}
	}

	unique := make([]string, 0, len(layers))
	seen := make(map[string]bool)
	for _, l := range layers {
		if !seen[l] {
			seen[l] = true
			unique = append(unique, l)
		}
	}
	return unique, nil
}

// LayerCheckResult contains the results of checking a PDF for stamp layers.
type LayerCheckResult struct {
	Layers         []string // All detected layers
	HasStampLayer  bool     // True if a stamp layer exists
	StampLayerName string   // Name of the detected stamp layer (if any)
	Warnings       []string // Warnings about layers that look like stamps
}

// CheckStampLayer checks whether pdfData already carries a stamp layer named
// layerName, either exactly or followed by a space and a qualifier.
func CheckStampLayer(pdfData []byte, layerName string) (LayerCheckResult, error) {
	result := LayerCheckResult{}

	layers, err := detectPDFLayers(pdfData)
	if err != nil {
		return result, fmt.Errorf("cannot analyze layers: %w", err)
	}
	result.Layers = layers

	for _, layer := range layers {
		if layer == layerName || strings.HasPrefix(layer, layerName+" ") {
			result.HasStampLayer = true
			result.StampLayerName = layer
			break
		}

		if strings.Contains(strings.ToLower(layer), "stamp") {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Existing layer detected that might contain a stamp: %s", layer))
		}
	}

	return result, nil
}
