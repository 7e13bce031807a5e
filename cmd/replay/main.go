// Command replay runs the extractor and batch builder over saved directory
// and USGS responses and prints the rows a sync would write. It makes no
// network calls and never touches a database.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -rivers internal/pipeline/testdata/rivers.json \
//	  internal/pipeline/testdata/report_tx.json \
//	  internal/pipeline/testdata/report_co.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/streamflow-sync/internal/domain"
)

func main() {
	riversPath := flag.String("rivers", "", "path to a directory listing (JSON array of rivers)")
	format := flag.String("format", "table", "output format: table, json or sql")
	maxParams := flag.Int("max-params", domain.MaxBindParams, "bind parameters per statement for -format sql")
	flag.Parse()

	if *riversPath == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: replay -rivers FILE [-format table|json|sql] REPORT...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if code := run(os.Stdout, *riversPath, flag.Args(), *format, *maxParams); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, riversPath string, reportPaths []string, format string, maxParams int) int {
	rivers, err := loadRivers(riversPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	index := domain.NewSiteIndex(rivers)
	merged := domain.ObservationSet{}
	var stats domain.ExtractStats
	for _, path := range reportPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read report: %v\n", err)
			return 1
		}
		report, err := domain.ParseWaterReport(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", path, err)
			return 1
		}
		set, s := domain.Extract(report, index)
		stats.Add(s)
		if replaced := merged.Merge(set); len(replaced) > 0 {
			fmt.Fprintf(os.Stderr, "warning: %s replaced observations for %v\n", path, replaced)
		}
	}

	batch := domain.BuildBatch(merged)
	if err := render(w, batch, format, maxParams); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr,
		"rivers=%d series=%d samples=%d kept=%d off_hour=%d malformed=%d no_data=%d unmapped=%v\n",
		len(rivers), stats.Series, stats.Samples, stats.Kept, stats.OffHour, stats.Malformed, stats.NoData, stats.Unmapped,
	)
	return 0
}

// loadRivers reads a listing and drops rivers a sync would skip.
func loadRivers(path string) ([]domain.River, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rivers: %w", err)
	}
	all, err := domain.ParseRivers(data)
	if err != nil {
		return nil, err
	}
	rivers := make([]domain.River, 0, len(all))
	for _, r := range all {
		if err := domain.ValidateRiver(r); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping river: %v\n", err)
			continue
		}
		rivers = append(rivers, r)
	}
	return rivers, nil
}

type jsonRow struct {
	Timestamp string `json:"timestamp"`
	Discharge string `json:"discharge"`
	RiverID   string `json:"river_id"`
}

func render(w io.Writer, batch domain.BatchInsert, format string, maxParams int) error {
	switch format {
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIMESTAMP\tDISCHARGE\tRIVER")
		for _, r := range batch.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.FormattedTimestamp(), r.Discharge, r.RiverID)
		}
		return tw.Flush()
	case "json":
		out := make([]jsonRow, len(batch.Rows))
		for i, r := range batch.Rows {
			out[i] = jsonRow{Timestamp: r.FormattedTimestamp(), Discharge: r.Discharge, RiverID: r.RiverID}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "sql":
		for _, stmt := range batch.Statements(maxParams) {
			fmt.Fprintf(w, "%s;\n-- %d parameters\n", stmt.SQL, len(stmt.Args))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
