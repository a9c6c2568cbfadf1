// Package extractor turns uploaded statements into plain text locally so
// the model can be sent text instead of a binary document.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrUnreadable    = errors.New("no readable text could be extracted")
)

// statementWords appear in virtually every bank statement. Text containing
// none of them is treated as garbage from an unsupported font encoding.
var statementWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "sort code",
	"money", "paid", "opening", "closing", "transfer", "direct",
	"number", "page", "period", "invoice", "receipt",
}

// PDFText extracts the text of every page of an in-memory PDF. Several
// extraction paths of the PDF library are tried in turn; the first that
// yields readable text wins.
func PDFText(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("open pdf: %w", ErrEmptyDocument)
	}

	for _, extract := range []func(*pdf.Reader, int) []string{byRow, byContent, byPagePlainText} {
		if pages := extract(r, n); IsReadable(pages) {
			return pages, nil
		}
	}
	if text := byReaderPlainText(r); IsReadable([]string{text}) {
		return []string{text}, nil
	}
	return nil, ErrUnreadable
}

// PDFTextCombined joins the pages with blank lines.
func PDFTextCombined(data []byte) (string, error) {
	pages, err := PDFText(data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n\n"), nil
}

// IsReadable requires more than 50 characters, more than 60% of them plain
// ASCII, and at least one word typical of financial documents.
func IsReadable(pages []string) bool {
	if textLen(pages) <= 50 {
		return false
	}
	if quality(pages) <= 0.6 {
		return false
	}
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, w := range statementWords {
		if strings.Contains(combined, w) {
			return true
		}
	}
	return false
}

func quality(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)) {
				readable++
				continue
			}
			switch r {
			case '£', '€':
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func textLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}

func byRow(r *pdf.Reader, n int) []string {
	var pages []string
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, w := range row.Content {
				words = append(words, w.S)
			}
			if line := strings.TrimSpace(strings.Join(words, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// byContent rebuilds rows from raw text objects: pieces are grouped by their
// rounded Y coordinate, rows go top to bottom and pieces left to right. A
// wide horizontal gap becomes a column separator.
func byContent(r *pdf.Reader, n int) []string {
	type piece struct {
		x float64
		s string
	}
	var pages []string
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rows := map[int][]piece{}
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			y := int(math.Round(t.Y))
			rows[y] = append(rows[y], piece{x: t.X, s: t.S})
		}
		ys := make([]int, 0, len(rows))
		for y := range rows {
			ys = append(ys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ys)))

		var lines []string
		for _, y := range ys {
			items := rows[y]
			sort.Slice(items, func(a, b int) bool { return items[a].x < items[b].x })
			var sb strings.Builder
			for j, it := range items {
				if j > 0 && it.x-items[j-1].x > 15 {
					sb.WriteString("  ")
				}
				sb.WriteString(it.s)
			}
			if line := strings.TrimSpace(sb.String()); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func byPagePlainText(r *pdf.Reader, n int) []string {
	var pages []string
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := map[string]*pdf.Font{}
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

func byReaderPlainText(r *pdf.Reader) string {
	rd, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
