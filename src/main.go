// Ranking analyzer command line entrypoint.
//
// Loads an exam score CSV (or an archived snapshot), prints per-subject and per-exam
// summaries, and optionally renders the subject/total/rank charts as PNG files, exports
// the records, edits the notes sidecar and manages the snapshot archive.
//
// Settings come from the environment (optionally a .env file, see package config); flags
// override them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/QianXiquq/RankingAnalyzer/src/analysis"
	"github.com/QianXiquq/RankingAnalyzer/src/archive"
	"github.com/QianXiquq/RankingAnalyzer/src/charts"
	"github.com/QianXiquq/RankingAnalyzer/src/config"
	"github.com/QianXiquq/RankingAnalyzer/src/records"
	"github.com/QianXiquq/RankingAnalyzer/src/store"
)

type options struct {
	envFile       string
	file          string
	notes         string
	setNotes      string
	backend       string
	outDir        string
	chartList     string
	annotate      bool
	width, height int
	export        string
	skipMalformed bool
	logLevel      string
	quiet         bool
	archiveDB     string
	archiveSave   string
	archiveLoad   string
	archiveList   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	// .env must be read before the other defaults are known
	pre := flag.NewFlagSet("rankanalyzer", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	pre.StringVar(&o.envFile, "env", ".env", "")
	_ = pre.Parse(filterFlag(args, "env"))

	cfg, err := config.Load(o.envFile)
	if err != nil {
		return o, err
	}
	fs := flag.NewFlagSet("rankanalyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.envFile, "env", o.envFile, "Path to a .env file with RANK_* settings (missing file is ignored)")
	fs.StringVar(&o.file, "file", cfg.DataFile, "CSV with exam,subject,score[,total_rank] columns")
	fs.StringVar(&o.notes, "notes", cfg.NotesFile, "Notes sidecar file")
	fs.StringVar(&o.setNotes, "set-notes", "", "Replace the notes with this text and exit after the other actions")
	fs.StringVar(&o.backend, "backend", cfg.ChartBackend, "Chart backend ("+strings.Join(charts.BackendNames(), "|")+")")
	fs.StringVar(&o.outDir, "out", "", "Directory to write chart PNGs to (empty: no charts)")
	fs.StringVar(&o.chartList, "charts", "subjects,total,rank", "Comma separated charts to render")
	fs.BoolVar(&o.annotate, "annotate", cfg.Annotate, "Print values next to chart points")
	fs.IntVar(&o.width, "width", cfg.ChartWidth, "Chart width in pixels")
	fs.IntVar(&o.height, "height", cfg.ChartHeight, "Chart height in pixels")
	fs.StringVar(&o.export, "export", "", "Export the loaded records to this CSV path")
	fs.BoolVar(&o.skipMalformed, "skip-malformed", false, "Skip malformed rows instead of failing the load")
	fs.StringVar(&o.logLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	fs.BoolVar(&o.quiet, "quiet", false, "Do not print the summary tables")
	fs.StringVar(&o.archiveDB, "archive", cfg.ArchiveDB, "SQLite snapshot archive")
	fs.StringVar(&o.archiveSave, "archive-save", "", "Archive the loaded records under this name")
	fs.StringVar(&o.archiveLoad, "archive-load", "", "Load records from the archived snapshot with this id or name instead of -file")
	fs.BoolVar(&o.archiveList, "archive-list", false, "List archived snapshots")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

// filterFlag keeps only -name / --name occurrences (and their value) from args.
func filterFlag(args []string, name string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a != "-"+name && a != "--"+name && !strings.HasPrefix(a, "-"+name+"=") && !strings.HasPrefix(a, "--"+name+"=") {
			continue
		}
		out = append(out, a)
		if !strings.Contains(a, "=") && i+1 < len(args) {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	records.SetLogLevel(o.logLevel)
	ctx := context.Background()
	fail := func(err error) int {
		color.New(color.FgRed).Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	var arc *archive.Archive
	if o.archiveList || o.archiveSave != "" || o.archiveLoad != "" {
		arc, err = archive.Open(ctx, o.archiveDB)
		if err != nil {
			return fail(err)
		}
		defer arc.Close()
	}
	if o.archiveList {
		if err := printSnapshots(ctx, stdout, arc); err != nil {
			return fail(err)
		}
	}

	st := store.New()
	st.SetSkipMalformed(o.skipMalformed)
	switch {
	case o.archiveLoad != "":
		ds, snap, err := arc.LoadSnapshot(ctx, o.archiveLoad)
		if err != nil {
			return fail(err)
		}
		if err := st.Replace(ds, "archive:"+snap.Name); err != nil {
			return fail(err)
		}
	case o.file != "":
		res, err := st.Load(o.file)
		if err != nil {
			var ioe *records.IOError
			// a missing default data file only matters when something needs the records
			if o.archiveList && errors.As(err, &ioe) && errors.Is(err, os.ErrNotExist) {
				break
			}
			return fail(err)
		}
		for _, de := range res.Skipped {
			color.New(color.FgYellow).Fprintf(stderr, "skipped: %v\n", de)
		}
	}

	if !o.quiet && !st.Empty() {
		printSummary(stdout, st)
		notes, err := store.LoadNotes(o.notes)
		if err != nil {
			records.Warnf("notes: %v", err)
		} else if notes != "" {
			color.New(color.FgCyan).Fprintf(stdout, "\nNotes (%s)\n", o.notes)
			fmt.Fprintln(stdout, notes)
		}
	}

	if o.outDir != "" {
		if err := writeCharts(st, o); err != nil {
			return fail(err)
		}
	}
	if o.export != "" {
		path, err := st.Export(o.export)
		if err != nil {
			return fail(err)
		}
		color.New(color.FgGreen).Fprintf(stdout, "exported %d records to %s\n", st.Len(), path)
	}
	if o.setNotes != "" {
		if err := store.SaveNotes(o.notes, o.setNotes); err != nil {
			return fail(err)
		}
		color.New(color.FgGreen).Fprintf(stdout, "notes saved to %s\n", o.notes)
	}
	if o.archiveSave != "" {
		snap, err := arc.SaveSnapshot(ctx, o.archiveSave, st.Dataset())
		if err != nil {
			return fail(err)
		}
		color.New(color.FgGreen).Fprintf(stdout, "archived %d records as %s (%s)\n", snap.Records, snap.Name, snap.ID)
	}
	return 0
}

func writeCharts(st *store.Store, o options) error {
	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return &records.IOError{Op: "mkdir", Path: o.outDir, Err: err}
	}
	backend := charts.BackendByName(o.backend)
	base := charts.Options{Width: o.width, Height: o.height, Annotate: o.annotate}
	for _, name := range strings.Split(o.chartList, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := store.ParseChartKind(name)
		if err != nil {
			return err
		}
		req, err := st.ChartRequest(kind, base)
		if errors.Is(err, records.ErrEmptyData) {
			records.Warnf("%s chart skipped: no data", kind)
			continue
		}
		if err != nil {
			return err
		}
		img, err := charts.Render(backend, req)
		if err != nil {
			return err
		}
		if err := charts.WritePNG(filepath.Join(o.outDir, kind.String()+".png"), img); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, st *store.Store) {
	p := st.Prepared()
	color.New(color.FgCyan).Fprintf(w, "=== %s: %d records, %d exams, %d subjects ===\n", st.Source(), st.Len(), len(p.XLabels), len(p.Subjects))

	color.New(color.FgYellow).Fprintln(w, "\nScores by exam")
	header := append([]string{"Exam"}, p.Subjects...)
	header = append(header, "Total")
	if p.Ranks != nil {
		header = append(header, "Rank")
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for i, lbl := range p.XLabels {
		row := []string{lbl}
		for _, s := range p.Subjects {
			v, ok := p.Score(i, s)
			row = append(row, cell(v, ok))
		}
		row = append(row, cell(p.Totals[i], !math.IsNaN(p.Totals[i])))
		if p.Ranks != nil {
			row = append(row, cell(p.Ranks[i], !math.IsNaN(p.Ranks[i])))
		}
		table.Append(row)
	}
	table.Render()

	color.New(color.FgYellow).Fprintln(w, "\nSubjects")
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Subject", "Exams", "Average", "Best", "Worst", "Latest", "Change"})
	for _, s := range analysis.SummarizeSubjects(p) {
		table.Append([]string{
			s.Subject,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.1f", s.Avg),
			cell(s.Best, true),
			cell(s.Worst, true),
			cell(s.Latest, true),
			fmt.Sprintf("%+.1f", s.ChangeTotal),
		})
	}
	table.Render()

	if c, ok := analysis.CompareLastVsPrevious(p); ok {
		col := color.New(color.FgGreen)
		if c.TotalDeltaPct < 0 {
			col = color.New(color.FgRed)
		}
		col.Fprintf(w, "\nLatest exam %s: total %s vs earlier average %.1f (%+.1f%%)\n", c.LastExam, cell(c.LastTotal, true), c.PrevAvgTotal, c.TotalDeltaPct)
		if c.HasRank {
			fmt.Fprintf(w, "Rank %s -> %s (%+.0f places)\n", cell(c.PrevRank, true), cell(c.LastRank, true), c.RankDelta)
		}
	}
	if p.Duplicates > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d duplicate (exam, subject) rows ignored; the first value was kept\n", p.Duplicates)
	}
}

func printSnapshots(ctx context.Context, w io.Writer, arc *archive.Archive) error {
	list, err := arc.List(ctx)
	if err != nil {
		return err
	}
	color.New(color.FgYellow).Fprintf(w, "Archived snapshots (%s)\n", arc.Path())
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Created", "Records", "Rank"})
	for _, s := range list {
		table.Append([]string{s.ID, s.Name, s.CreatedAt.Local().Format(time.DateTime), fmt.Sprintf("%d", s.Records), fmt.Sprintf("%t", s.HasRank)})
	}
	table.Render()
	return nil
}

func cell(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
