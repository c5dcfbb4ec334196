package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Brownie44l1/meloscan/internal/classifier"
)

const maxFileWidth = 40

var printer = message.NewPrinter(language.English)

// fileResult is one line of output. Result is nil when Error is set.
type fileResult struct {
	File string `json:"file"`
	*classifier.Result
	Error string `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []fileResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func writeTable(w io.Writer, results []fileResult) error {
	headers := []string{"FILE", "CLASS", "CONFIDENCE", "VALID", "DEGRADED"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		name := runewidth.Truncate(r.File, maxFileWidth, "…")
		if r.Error != "" {
			rows = append(rows, []string{name, "error", "-", "-", r.Error})
			continue
		}
		degraded := strings.Join(r.DegradedFamilies(), ",")
		if degraded == "" {
			degraded = "-"
		}
		rows = append(rows, []string{
			name,
			string(r.PredictedClass),
			percent(r.Confidence),
			yesNo(r.IsValid),
			degraded,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	if err := writeRow(w, headers, widths); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeRow(w, row, widths); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, cells []string, widths []int) error {
	var b strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}
		b.WriteString(padRight(cell, widths[i]))
		b.WriteString("  ")
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// padRight pads s with spaces so its display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func percent(v float64) string {
	return printer.Sprintf("%.1f%%", v*100)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
