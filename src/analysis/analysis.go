package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/QianXiquq/RankingAnalyzer/src/records"
)

// Prepared is the pivoted view of a record set: every slice is index-aligned with Exams,
// which is sorted ascending and holds each distinct exam exactly once.
type Prepared struct {
	Exams    []records.Exam
	XLabels  []string
	Subjects []string
	// Scores is the score table; a subject missing for an exam is an absent key, never 0.
	Scores []map[string]float64
	// Totals sums each exam's present scores; NaN when the exam has no score at all.
	Totals []float64
	// Ranks holds the first recorded rank per exam (NaN when none). Nil when the source
	// had no rank column.
	Ranks []float64
	// DateMode is true when exams are calendar dates (chronological order).
	DateMode bool
	// Duplicates counts (exam, subject) rows discarded because an earlier row won.
	Duplicates int
}

// Prepare pivots ds into per-subject, total and rank series. Empty input yields an empty
// result without error. Exams are ordered as dates only when every exam is a date; any
// free-text exam puts the whole set in text mode, keyed and ordered by the raw strings.
func Prepare(ds records.Dataset) (*Prepared, error) {
	defer records.TimeTrack(time.Now(), "prepare")
	p := &Prepared{}
	if ds.Empty() {
		if ds.HasRank {
			p.Ranks = []float64{}
		}
		return p, nil
	}
	p.DateMode = examMode(ds.Records)
	exam := func(e records.Exam) records.Exam {
		if p.DateMode {
			return e
		}
		return records.Exam{Raw: e.Raw}
	}

	// Phase 1: collect distinct exams in source order, keyed by label.
	index := map[string]int{}
	for _, r := range ds.Records {
		e := exam(r.Exam)
		lbl := e.Label()
		if _, ok := index[lbl]; ok {
			continue
		}
		index[lbl] = len(p.Exams)
		p.Exams = append(p.Exams, e)
	}
	sort.SliceStable(p.Exams, func(i, j int) bool { return p.Exams[i].Less(p.Exams[j]) })
	n := len(p.Exams)
	p.XLabels = make([]string, n)
	for i, e := range p.Exams {
		p.XLabels[i] = e.Label()
		index[p.XLabels[i]] = i
	}

	// Phase 2: pivot scores (first non-missing value wins) and pick the first rank.
	p.Scores = make([]map[string]float64, n)
	for i := range p.Scores {
		p.Scores[i] = map[string]float64{}
	}
	if ds.HasRank {
		p.Ranks = make([]float64, n)
		for i := range p.Ranks {
			p.Ranks[i] = math.NaN()
		}
	}
	subjects := map[string]struct{}{}
	for _, r := range ds.Records {
		i := index[exam(r.Exam).Label()]
		if r.HasScore() {
			if _, seen := p.Scores[i][r.Subject]; seen {
				p.Duplicates++
				records.Debugf("duplicate score for exam=%s subject=%s row=%d discarded (value %.2f)", p.XLabels[i], r.Subject, r.Row, r.Score)
			} else {
				p.Scores[i][r.Subject] = r.Score
				subjects[r.Subject] = struct{}{}
			}
		}
		if ds.HasRank && r.HasRank() && math.IsNaN(p.Ranks[i]) {
			p.Ranks[i] = r.TotalRank
		}
	}
	p.Subjects = make([]string, 0, len(subjects))
	for s := range subjects {
		p.Subjects = append(p.Subjects, s)
	}
	sort.Strings(p.Subjects)

	// Phase 3: totals over present scores only.
	p.Totals = make([]float64, n)
	for i, row := range p.Scores {
		if len(row) == 0 {
			p.Totals[i] = math.NaN()
			continue
		}
		sum := 0.0
		for _, s := range p.Subjects {
			sum += row[s]
		}
		p.Totals[i] = sum
	}
	records.Debugf("prepared exams=%d subjects=%d duplicates=%d date_mode=%t", n, len(p.Subjects), p.Duplicates, p.DateMode)
	return p, nil
}

// examMode reports date mode when every exam parsed as a date. A mix falls back to text
// mode and logs the first free-text exam.
func examMode(recs []records.ExamRecord) bool {
	first, dates := -1, 0
	for i, r := range recs {
		if r.Exam.IsDate() {
			dates++
		} else if first < 0 {
			first = i
		}
	}
	if first >= 0 && dates > 0 {
		r := recs[first]
		records.Warnf("exam %q at row %d is not a date; ordering all exams as text", r.Exam.Raw, r.Row)
	}
	return first < 0
}

// Empty reports whether no exam is present.
func (p *Prepared) Empty() bool { return p == nil || len(p.Exams) == 0 }

// HasTotals reports whether at least one exam has a total.
func (p *Prepared) HasTotals() bool { return p != nil && anyValue(p.Totals) }

// HasRanks reports whether rank data exists (column present and at least one value).
func (p *Prepared) HasRanks() bool { return p != nil && anyValue(p.Ranks) }

// SubjectSeries returns the subject's scores aligned with XLabels, NaN where absent.
func (p *Prepared) SubjectSeries(subject string) []float64 {
	out := make([]float64, len(p.Scores))
	for i, row := range p.Scores {
		if v, ok := row[subject]; ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// ScoreTable returns exam label -> subject -> score.
func (p *Prepared) ScoreTable() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(p.XLabels))
	for i, lbl := range p.XLabels {
		row := make(map[string]float64, len(p.Scores[i]))
		for s, v := range p.Scores[i] {
			row[s] = v
		}
		out[lbl] = row
	}
	return out
}

// TotalSeries returns exam label -> total, omitting exams without a total.
func (p *Prepared) TotalSeries() map[string]float64 { return labelMap(p.XLabels, p.Totals) }

// RankSeries returns exam label -> rank, omitting exams without a rank. Empty when the
// source had no rank column.
func (p *Prepared) RankSeries() map[string]float64 { return labelMap(p.XLabels, p.Ranks) }

// Score returns the score of subject at exam index i.
func (p *Prepared) Score(i int, subject string) (float64, bool) {
	if i < 0 || i >= len(p.Scores) {
		return 0, false
	}
	v, ok := p.Scores[i][subject]
	return v, ok
}

// String is a short diagnostic summary.
func (p *Prepared) String() string {
	if p.Empty() {
		return "prepared: empty"
	}
	return fmt.Sprintf("prepared: exams=%d (%s..%s) subjects=%d ranks=%t", len(p.XLabels), p.XLabels[0], p.XLabels[len(p.XLabels)-1], len(p.Subjects), p.HasRanks())
}

func labelMap(labels []string, vals []float64) map[string]float64 {
	out := map[string]float64{}
	for i, v := range vals {
		if i < len(labels) && !math.IsNaN(v) {
			out[labels[i]] = v
		}
	}
	return out
}

func anyValue(vals []float64) bool {
	for _, v := range vals {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}
