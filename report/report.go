// Package report exports opportunity records as CSV, JSON or Markdown and
// prints them as a terminal table.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/use-agent/maillage/models"
)

// Export formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Options controls an export.
type Options struct {
	Format    string // default: csv
	Locale    string // default: en
	Delimiter rune   // CSV only; default: ','
	BOM       bool   // CSV only: prefix the output with a UTF-8 byte order mark
}

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Extension returns the usual file extension of format, dot included.
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	default:
		return ".csv"
	}
}

// Write renders records to w. The header is always written, even when
// there are no records.
func Write(w io.Writer, records []models.OpportunityRecord, opts Options) error {
	switch opts.Format {
	case FormatCSV, "":
		labels, err := LabelsFor(opts.Locale)
		if err != nil {
			return err
		}
		return writeCSV(w, records, labels, opts)
	case FormatJSON:
		return writeJSON(w, records)
	case FormatMarkdown:
		labels, err := LabelsFor(opts.Locale)
		if err != nil {
			return err
		}
		return writeMarkdown(w, records, labels)
	default:
		return fmt.Errorf("report: unknown format %q", opts.Format)
	}
}

// WriteFile writes records to path, replacing any existing file.
func WriteFile(path string, records []models.OpportunityRecord, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return models.NewError(models.ErrCodeExport, fmt.Sprintf("cannot create %s", path), err)
	}
	if err := Write(f, records, opts); err != nil {
		f.Close()
		return models.NewError(models.ErrCodeExport, fmt.Sprintf("cannot write %s", path), err)
	}
	if err := f.Close(); err != nil {
		return models.NewError(models.ErrCodeExport, fmt.Sprintf("cannot write %s", path), err)
	}
	return nil
}

func writeCSV(w io.Writer, records []models.OpportunityRecord, labels Labels, opts Options) error {
	out := w
	var bom *transform.Writer
	if opts.BOM {
		bom = transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
		out = bom
	}

	cw := csv.NewWriter(out)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	if err := cw.Write(labels.Header[:]); err != nil {
		return fmt.Errorf("report: csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(labels.Row(rec)); err != nil {
			return fmt.Errorf("report: csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: csv flush: %w", err)
	}
	if bom != nil {
		return bom.Close()
	}
	return nil
}

func writeJSON(w io.Writer, records []models.OpportunityRecord) error {
	if records == nil {
		records = []models.OpportunityRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("report: json: %w", err)
	}
	return nil
}

var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// writeMarkdown builds an HTML table and converts it to a Markdown table.
func writeMarkdown(w io.Writer, records []models.OpportunityRecord, labels Labels) error {
	var buf bytes.Buffer
	if err := html.Render(&buf, htmlTable(records, labels)); err != nil {
		return fmt.Errorf("report: render table: %w", err)
	}
	md, err := markdownConverter.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("report: markdown: %w", err)
	}
	_, err = io.WriteString(w, strings.TrimSpace(md)+"\n")
	return err
}

func htmlTable(records []models.OpportunityRecord, labels Labels) *html.Node {
	tbl := element(atom.Table)
	thead := element(atom.Thead)
	thead.AppendChild(htmlRow(atom.Th, labels.Header[:]))
	tbl.AppendChild(thead)

	tbody := element(atom.Tbody)
	for _, rec := range records {
		tbody.AppendChild(htmlRow(atom.Td, labels.Row(rec)))
	}
	tbl.AppendChild(tbody)
	return tbl
}

func htmlRow(cell atom.Atom, values []string) *html.Node {
	tr := element(atom.Tr)
	for _, v := range values {
		c := element(cell)
		c.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		tr.AppendChild(c)
	}
	return tr
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}
