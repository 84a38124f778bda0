// Package report renders operation reports to PDF so a backup or restore run
// can be archived alongside the data it produced.
package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/searchops/meilivault/internal/models"
)

// Service converts operation reports to PDF documents.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a report service.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Render produces a PDF for the report's current state.
func (s *Service) Render(report *models.OperationReport) ([]byte, error) {
	return s.RenderMarkdown(report.Markdown())
}

// RenderMarkdown converts markdown content to a PDF byte slice.
func (s *Service) RenderMarkdown(markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	r := &renderer{pdf: pdf, source: source}
	if err := ast.Walk(doc, r.walk); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render report PDF")
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type renderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	bold   bool
	inList bool
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(5)
			size := 14.0 - float64(node.Level)
			if size < 10 {
				size = 10
			}
			r.pdf.SetFont("Arial", "B", size)
		} else {
			r.pdf.Ln(6)
			r.resetFont()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, string(node.Text(r.source)))
		}
	case *ast.Emphasis:
		r.bold = entering && node.Level == 2
		r.resetFont()
	case *ast.List:
		r.inList = entering
		if !entering {
			r.pdf.Ln(2)
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(15)
			r.pdf.Write(5, "- ")
		}
	case *extast.Table:
		if entering {
			r.renderTable(node)
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *renderer) resetFont() {
	style := ""
	if r.bold {
		style = "B"
	}
	r.pdf.SetFont("Arial", style, 9)
}

func (r *renderer) renderTable(table *extast.Table) {
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch section := child.(type) {
		case *extast.TableHeader:
			for tr := section.FirstChild(); tr != nil; tr = tr.NextSibling() {
				if row, ok := tr.(*extast.TableRow); ok {
					rows = append(rows, r.cells(row))
				}
			}
			// A header with cells directly under it is also valid.
			if section.FirstChild() != nil {
				if _, ok := section.FirstChild().(*extast.TableCell); ok {
					rows = append(rows, r.cellsOf(section))
				}
			}
		case *extast.TableRow:
			rows = append(rows, r.cells(section))
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	r.pdf.Ln(3)
	colWidth := 180.0 / float64(len(rows[0]))
	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont("Arial", "B", 8)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont("Arial", "", 8)
			r.pdf.SetFillColor(255, 255, 255)
		}
		for _, cell := range row {
			r.pdf.CellFormat(colWidth, 6, r.fit(cell, colWidth-2), "1", 0, "L", i == 0, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.Ln(3)
	r.resetFont()
}

func (r *renderer) cells(row *extast.TableRow) []string {
	return r.cellsOf(row)
}

func (r *renderer) cellsOf(parent ast.Node) []string {
	var out []string
	for cell := parent.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if c, ok := cell.(*extast.TableCell); ok {
			out = append(out, string(c.Text(r.source)))
		}
	}
	return out
}

// fit truncates text to the given width, appending an ellipsis.
func (r *renderer) fit(text string, width float64) string {
	if r.pdf.GetStringWidth(text) <= width {
		return text
	}
	for len(text) > 3 && r.pdf.GetStringWidth(text+"...") > width {
		text = text[:len(text)-1]
	}
	return text + "..."
}
