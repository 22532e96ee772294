// Package render formats resolved occurrences as aligned terminal day views.
package render

import (
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"icsday/internal/daykey"
	"icsday/internal/model"
)

// Config controls day-view rendering.
type Config struct {
	// Highlight keywords; a row whose summary contains one is shown in red.
	Highlight []string
	// Color enables ANSI colors.
	Color bool
}

// DayView renders one block per requested day: a header line and a table of
// that day's occurrences sorted by start instant, columns aligned on display
// width.
func DayView(days []daykey.Day, occs []model.Occurrence, cfg Config) string {
	byDay := make(map[string][]model.Occurrence, len(days))
	for _, occ := range occs {
		byDay[occ.Day] = append(byDay[occ.Day], occ)
	}

	red := color.New(color.FgRed)
	red.EnableColor()
	if !cfg.Color {
		red.DisableColor()
	}

	var b strings.Builder
	for i, d := range days {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(d))
		b.WriteByte('\n')

		dayOccs := byDay[string(d)]
		if len(dayOccs) == 0 {
			b.WriteString("  (no events)\n")
			continue
		}
		sort.SliceStable(dayOccs, func(i, j int) bool {
			return dayOccs[i].Start.Before(dayOccs[j].Start)
		})

		rows := make([][3]string, 0, len(dayOccs))
		for _, occ := range dayOccs {
			rows = append(rows, [3]string{timeColumn(occ), summaryColumn(occ), occ.Location})
		}

		var timeWidth, summaryWidth int
		for _, row := range rows {
			if w := runewidth.StringWidth(row[0]); w > timeWidth {
				timeWidth = w
			}
			if w := runewidth.StringWidth(row[1]); w > summaryWidth {
				summaryWidth = w
			}
		}

		for ri, row := range rows {
			line := "  " + pad(row[0], timeWidth) + "  " + pad(row[1], summaryWidth)
			if row[2] != "" {
				line += "  " + row[2]
			}
			line = strings.TrimRight(line, " ")
			if highlighted(dayOccs[ri].Summary, cfg.Highlight) {
				line = red.Sprint(line)
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func timeColumn(occ model.Occurrence) string {
	if occ.AllDay {
		return "all-day"
	}
	if occ.Provenance == model.ProvenanceOngoing {
		return "ongoing"
	}
	return occ.Start.Format("15:04") + "-" + occ.End.Format("15:04")
}

func summaryColumn(occ model.Occurrence) string {
	s := occ.Summary
	switch occ.Provenance {
	case model.ProvenanceOverride:
		s += " [moved]"
	case model.ProvenanceRecurring:
		s += " [recurring]"
	}
	return s
}

// pad right-pads to the target display width; runewidth keeps wide runes
// (CJK summaries are common in calendar feeds) from breaking alignment.
func pad(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

func highlighted(summary string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(summary, kw) {
			return true
		}
	}
	return false
}
