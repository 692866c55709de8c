// Package store owns the one in-memory record set of an application shell and hands
// prepared series and chart requests to callers.
package store

import (
	"fmt"
	"io"
	"strings"

	"github.com/QianXiquq/RankingAnalyzer/src/analysis"
	"github.com/QianXiquq/RankingAnalyzer/src/charts"
	"github.com/QianXiquq/RankingAnalyzer/src/records"
)

// ChartKind names one of the three standard charts.
type ChartKind int

const (
	ChartSubjects ChartKind = iota
	ChartTotal
	ChartRank
)

var chartKindNames = []string{"subjects", "total", "rank"}

func (k ChartKind) String() string {
	if int(k) < len(chartKindNames) {
		return chartKindNames[k]
	}
	return fmt.Sprintf("chart(%d)", int(k))
}

// ChartKinds returns every kind in display order.
func ChartKinds() []ChartKind { return []ChartKind{ChartSubjects, ChartTotal, ChartRank} }

// ParseChartKind accepts the names returned by String plus "scores" for subjects.
func ParseChartKind(s string) (ChartKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subjects", "subject", "scores":
		return ChartSubjects, nil
	case "total", "totals":
		return ChartTotal, nil
	case "rank", "ranks":
		return ChartRank, nil
	}
	return 0, fmt.Errorf("unknown chart %q (want subjects, total or rank)", s)
}

// Store holds the current record set. A failed load leaves it untouched.
type Store struct {
	ds       records.Dataset
	prepared *analysis.Prepared
	source   string
	opts     records.ReadOptions
}

// New returns an empty store.
func New() *Store { return &Store{prepared: &analysis.Prepared{}} }

// SetSkipMalformed controls whether later loads skip malformed rows instead of failing.
func (s *Store) SetSkipMalformed(skip bool) { s.opts.SkipMalformed = skip }

// Load replaces the record set with the contents of path.
func (s *Store) Load(path string) (*records.LoadResult, error) {
	res, err := records.LoadFile(path, s.opts)
	if err != nil {
		return nil, err
	}
	if err := s.Replace(res.Dataset, path); err != nil {
		return nil, err
	}
	return res, nil
}

// LoadReader replaces the record set with CSV read from r; source names it in errors.
func (s *Store) LoadReader(r io.Reader, source string) (*records.LoadResult, error) {
	opts := s.opts
	opts.Source = source
	res, err := records.ReadCSV(r, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Replace(res.Dataset, source); err != nil {
		return nil, err
	}
	return res, nil
}

// Replace swaps in ds after checking that it prepares cleanly.
func (s *Store) Replace(ds records.Dataset, source string) error {
	p, err := analysis.Prepare(ds)
	if err != nil {
		return err
	}
	s.ds = ds.Clone()
	s.prepared = p
	s.source = source
	records.Debugf("store: %s", p)
	return nil
}

// Dataset returns a copy of the current record set.
func (s *Store) Dataset() records.Dataset { return s.ds.Clone() }

// Len returns the number of loaded records.
func (s *Store) Len() int { return s.ds.Len() }

// Empty reports whether nothing is loaded.
func (s *Store) Empty() bool { return s.ds.Empty() }

// Source is the path or name the current records came from.
func (s *Store) Source() string { return s.source }

// Prepared returns the series of the current record set. Callers must not modify it.
func (s *Store) Prepared() *analysis.Prepared { return s.prepared }

// Export writes the record set to path (".csv" is appended when missing) and returns
// the path written. An empty store fails with ErrEmptyData.
func (s *Store) Export(path string) (string, error) {
	if s.ds.Empty() {
		return "", &records.EmptyDataError{Op: "export"}
	}
	return records.SaveFile(path, s.ds)
}

// ChartRequest builds the render request of one chart kind. Width, Height and Annotate
// are taken from base; titles, axes and formats are set per kind.
func (s *Store) ChartRequest(kind ChartKind, base charts.Options) (charts.Request, error) {
	p := s.prepared
	if p.Empty() {
		return charts.Request{}, &records.EmptyDataError{Op: kind.String() + " chart"}
	}
	opts := base
	opts.XAxisLabel = "Exam"
	opts.RotateXLabels = p.DateMode
	req := charts.Request{XLabels: p.XLabels}
	switch kind {
	case ChartSubjects:
		opts.Title = "Subject scores"
		opts.YAxisLabel = "Score"
		opts.ValueFormat = charts.ValueFormatRounded
		for _, subj := range p.Subjects {
			req.Series = append(req.Series, charts.Series{Name: subj, Values: p.SubjectSeries(subj), Marker: charts.MarkerCircle})
		}
		if len(req.Series) == 0 {
			return charts.Request{}, &records.EmptyDataError{Op: "subjects chart"}
		}
	case ChartTotal:
		if !p.HasTotals() {
			return charts.Request{}, &records.EmptyDataError{Op: "total chart"}
		}
		opts.Title = "Total score"
		opts.YAxisLabel = "Total"
		opts.ValueFormat = charts.ValueFormatRounded
		req.Series = []charts.Series{{Name: "total", Values: p.Totals, Marker: charts.MarkerSquare}}
	case ChartRank:
		if !p.HasRanks() {
			return charts.Request{}, &records.EmptyDataError{Op: "rank chart"}
		}
		opts.Title = "Overall rank"
		opts.YAxisLabel = "Rank"
		opts.InvertY = true
		opts.ValueFormat = charts.ValueFormatInt
		req.Series = []charts.Series{{Name: "rank", Values: p.Ranks, Marker: charts.MarkerTriangle}}
	default:
		return charts.Request{}, fmt.Errorf("unknown chart kind %d", int(kind))
	}
	req.Options = opts
	return req, nil
}
