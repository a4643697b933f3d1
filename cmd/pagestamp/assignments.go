package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gardar/pagestamp/pkg/session"
	"github.com/gardar/pagestamp/pkg/taskapi"
)

// pageAssignment is one page entry of an assignment file or -assign flag.
type pageAssignment struct {
	Page     int      `yaml:"page"`
	Suffix   string   `yaml:"suffix"`
	Material string   `yaml:"material"`
	X        *float64 `yaml:"x"`
	Y        *float64 `yaml:"y"`
}

// assignmentFile is the YAML layout of -assignments:
//
//	head: J1001
//	po_number: PO-7
//	customer: Acme
//	pages:
//	  - page: 1
//	    suffix: "1"
//	    material: SKS3 + AL
type assignmentFile struct {
	Head     string           `yaml:"head"`
	PONumber string           `yaml:"po_number"`
	QTNumber string           `yaml:"qt_number"`
	Customer string           `yaml:"customer"`
	Pages    []pageAssignment `yaml:"pages"`
}

func loadAssignments(path string) (*assignmentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var af assignmentFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, p := range af.Pages {
		if p.Page < 1 {
			return nil, fmt.Errorf("%s: entry %d has no valid page number", path, i+1)
		}
		if (p.X == nil) != (p.Y == nil) {
			return nil, fmt.Errorf("%s: page %d needs both x and y", path, p.Page)
		}
	}
	return &af, nil
}

func (af *assignmentFile) head() taskapi.Head {
	return taskapi.Head{PONumber: af.PONumber, QTNumber: af.QTNumber, Customer: af.Customer}
}

// assignFlags collects repeated -assign page=suffix[:material] flags.
type assignFlags []pageAssignment

func (a *assignFlags) String() string {
	parts := make([]string, len(*a))
	for i, p := range *a {
		parts[i] = fmt.Sprintf("%d=%s:%s", p.Page, p.Suffix, p.Material)
	}
	return strings.Join(parts, ",")
}

func (a *assignFlags) Set(v string) error {
	p, err := parseAssignFlag(v)
	if err != nil {
		return err
	}
	*a = append(*a, p)
	return nil
}

// parseAssignFlag parses "page=suffix", "page=suffix:material" and
// "page=:material". Two materials are written "SKS3+AL".
func parseAssignFlag(v string) (pageAssignment, error) {
	pageStr, rest, ok := strings.Cut(v, "=")
	if !ok {
		return pageAssignment{}, fmt.Errorf("assignment %q is not page=suffix[:material]", v)
	}
	page, err := strconv.Atoi(strings.TrimSpace(pageStr))
	if err != nil || page < 1 {
		return pageAssignment{}, fmt.Errorf("assignment %q has an invalid page number", v)
	}
	suffix, material, _ := strings.Cut(rest, ":")
	return pageAssignment{Page: page, Suffix: suffix, Material: material}, nil
}

// applyAssignments records every entry in the session. Later entries for a
// page replace earlier ones.
func applyAssignments(s *session.Session, entries []pageAssignment) error {
	for _, p := range entries {
		if err := s.Assign(p.Page, p.Suffix, p.Material); err != nil {
			return err
		}
		if p.X != nil && p.Y != nil {
			if err := s.SetPlacement(p.Page, *p.X, *p.Y); err != nil {
				return err
			}
		}
	}
	return nil
}
