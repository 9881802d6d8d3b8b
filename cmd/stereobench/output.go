package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/oakmontlabs/stereobench/internal/metrics"
)

type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable
	case "json", "jsonl":
		return FormatJSON
	default:
		return ""
	}
}

func resolveOutputFormat(flagValue string, configValue string) (OutputFormat, error) {
	if strings.TrimSpace(flagValue) != "" {
		out := parseOutputFormat(flagValue)
		if out == "" {
			return "", fmt.Errorf("invalid --output %q (expected table|json)", flagValue)
		}
		return out, nil
	}
	if out := parseOutputFormat(configValue); out != "" {
		return out, nil
	}
	return FormatTable, nil
}

// FormatReport renders one predictions file's metrics report.
func FormatReport(source string, rep *metrics.Report, format OutputFormat) string {
	switch format {
	case FormatTable:
		return formatReportTable(source, rep)
	case FormatJSON:
		return formatReportJSON(source, rep)
	default:
		return fmt.Sprintf("error: unknown output format %q\n", format)
	}
}

func formatReportTable(source string, rep *metrics.Report) string {
	if rep == nil {
		return "Report: <nil>\n\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Predictions: %s\n", source)
	if strings.TrimSpace(rep.Model) != "" {
		fmt.Fprintf(&buf, "Model: %s\n", rep.Model)
	}

	for _, tr := range rep.Tracks() {
		fmt.Fprintf(&buf, "\nTrack: %s\n", tr.Track)

		table := newMetricsTable(&buf, []string{"CATEGORY", "ITEMS", "LMS", "SS", "ICAT", "SKIPPED"})
		for _, c := range tr.Categories {
			_ = table.Append(metricsRow(c))
		}
		_ = table.Append(metricsRow(tr.Overall))
		_ = table.Render()
	}
	buf.WriteByte('\n')
	return buf.String()
}

func newMetricsTable(w io.Writer, header []string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(header),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

func metricsRow(c metrics.CategoryMetrics) []string {
	return []string{
		c.Category,
		strconv.Itoa(c.Items),
		fmt.Sprintf("%.2f", c.LMS),
		fmt.Sprintf("%.2f", c.SS),
		fmt.Sprintf("%.2f", c.ICAT),
		strconv.Itoa(c.Skipped()),
	}
}

type jsonReport struct {
	Predictions string      `json:"predictions"`
	Model       string      `json:"model,omitempty"`
	Tracks      []jsonTrack `json:"tracks"`
}

type jsonTrack struct {
	Track      string         `json:"track"`
	Categories []jsonCategory `json:"categories"`
	Overall    jsonCategory   `json:"overall"`
}

type jsonCategory struct {
	Category string  `json:"category"`
	Items    int     `json:"items"`
	LMS      float64 `json:"lms"`
	SS       float64 `json:"ss"`
	ICAT     float64 `json:"icat"`
	Skipped  int     `json:"skipped"`
}

func toJSONCategory(c metrics.CategoryMetrics) jsonCategory {
	return jsonCategory{
		Category: c.Category,
		Items:    c.Items,
		LMS:      c.LMS,
		SS:       c.SS,
		ICAT:     c.ICAT,
		Skipped:  c.Skipped(),
	}
}

func formatReportJSON(source string, rep *metrics.Report) string {
	if rep == nil {
		return "{\"error\":\"nil report\"}\n"
	}

	out := jsonReport{Predictions: source, Model: rep.Model}
	for _, tr := range rep.Tracks() {
		jt := jsonTrack{Track: tr.Track, Overall: toJSONCategory(tr.Overall)}
		for _, c := range tr.Categories {
			jt.Categories = append(jt.Categories, toJSONCategory(c))
		}
		out.Tracks = append(out.Tracks, jt)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}
