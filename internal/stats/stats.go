// Package stats defines per-region reporting rows and their consumers.
package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
)

// Row is one region's reporting record.
type Row struct {
	Tag           string  // region variant: "T" objects, "E" entities
	OriginX       int64   // world X of region's minimal corner
	OriginZ       int64   // world Z of region's minimal corner
	Members       int     // live member count
	AvgTickMillis float64 // EWMA of pass duration, ms
	Placeholder   bool    // "no region" (objects outside world bounds)
}

// Reporter consumes a snapshot of region rows.
type Reporter interface {
	Report(ctx context.Context, rows []Row) error
}

// Summary aggregates rows.
type Summary struct {
	Regions     int
	Members     int
	MaxTickMs   float64
	SlowestX    int64
	SlowestZ    int64
	SlowestTag  string
	TotalTickMs float64
}

// Summarize aggregates rows into totals and the slowest region.
func Summarize(rows []Row) Summary {
	var s Summary
	for i, r := range rows {
		s.Regions++
		s.Members += r.Members
		s.TotalTickMs += r.AvgTickMillis
		if i == 0 || r.AvgTickMillis > s.MaxTickMs {
			s.MaxTickMs = r.AvgTickMillis
			s.SlowestX, s.SlowestZ, s.SlowestTag = r.OriginX, r.OriginZ, r.Tag
		}
	}
	return s
}

// TableWriter writes rows as an aligned table.
type TableWriter struct {
	w io.Writer
}

// NewTableWriter creates table writer on w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{w: w}
}

// Report implements Reporter.
func (t *TableWriter) Report(_ context.Context, rows []Row) error {
	tw := tabwriter.NewWriter(t.w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Type\tX\tZ\tSize\tTime (ms)\t")
	for _, r := range rows {
		x, z := fmt.Sprint(r.OriginX), fmt.Sprint(r.OriginZ)
		if r.Placeholder {
			x, z = "-", "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.3f\t\n", r.Tag, x, z, r.Members, r.AvgTickMillis)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing stats table: %w", err)
	}
	return nil
}

// LogReporter logs a summary line plus the slowest rows.
type LogReporter struct {
	Top int // rows logged individually, slowest first (0 = summary only)
}

// Report implements Reporter.
func (l LogReporter) Report(_ context.Context, rows []Row) error {
	s := Summarize(rows)
	slog.Info("tick region stats",
		"regions", s.Regions,
		"members", s.Members,
		"max_tick_ms", s.MaxTickMs,
		"slowest_tag", s.SlowestTag,
		"slowest_x", s.SlowestX,
		"slowest_z", s.SlowestZ)

	for _, r := range Slowest(rows, l.Top) {
		slog.Info("slow tick region",
			"tag", r.Tag,
			"x", r.OriginX,
			"z", r.OriginZ,
			"members", r.Members,
			"avg_tick_ms", r.AvgTickMillis)
	}
	return nil
}

// Slowest returns up to n rows with the highest average, slowest first.
func Slowest(rows []Row, n int) []Row {
	if n <= 0 || len(rows) == 0 {
		return nil
	}
	cp := append([]Row(nil), rows...)
	// Partial selection sort: n is small.
	if n > len(cp) {
		n = len(cp)
	}
	for i := range n {
		maxIdx := i
		for j := i + 1; j < len(cp); j++ {
			if cp[j].AvgTickMillis > cp[maxIdx].AvgTickMillis {
				maxIdx = j
			}
		}
		cp[i], cp[maxIdx] = cp[maxIdx], cp[i]
	}
	return cp[:n]
}

// Multi fans a snapshot out to several reporters; the first error is returned
// after every reporter has run.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, rows []Row) error {
	var first error
	for _, r := range m {
		if err := r.Report(ctx, rows); err != nil && first == nil {
			first = err
		}
	}
	return first
}
