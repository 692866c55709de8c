// Package records holds the exam score model shared by the analyzer and both shells:
// one ExamRecord per (exam, subject) row, the CSV codec that reads and writes them, the
// error taxonomy and the leveled logger.
package records

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the display and export format for date-like exams.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseExam.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-1-2",
	"2006/1/2",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"20060102",
	"2006-01",
	"2006/01",
}

// Exam identifies one scored assessment event, either by date or by free-text label.
type Exam struct {
	Raw  string
	Date time.Time // zero unless Raw parsed as a date
}

// ParseExam trims raw and parses it as a date when one of the known layouts matches.
func ParseExam(raw string) Exam {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return Exam{Raw: raw, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
		}
	}
	return Exam{Raw: raw}
}

// DateExam builds a date exam directly (tests, archive restore).
func DateExam(y int, m time.Month, d int) Exam {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Exam{Raw: t.Format(DateLayout), Date: t}
}

// IsDate reports whether the exam identifier parsed as a calendar date.
func (e Exam) IsDate() bool { return !e.Date.IsZero() }

// Label is the display form: YYYY-MM-DD for dates, the raw string otherwise.
// Exams with equal labels are the same exam.
func (e Exam) Label() string {
	if e.IsDate() {
		return e.Date.Format(DateLayout)
	}
	return e.Raw
}

// Less orders dates chronologically and labels lexicographically. A date sorts before a
// label; the analyzer strips dates from mixed sets before ordering.
func (e Exam) Less(o Exam) bool {
	switch {
	case e.IsDate() && o.IsDate():
		return e.Date.Before(o.Date)
	case e.IsDate() != o.IsDate():
		return e.IsDate()
	default:
		return e.Raw < o.Raw
	}
}

// ExamRecord is one row of the source table. Score and TotalRank use NaN for "missing".
type ExamRecord struct {
	Row       int // 1-based data row in the source, 0 when built in code
	Exam      Exam
	Subject   string
	Score     float64
	TotalRank float64
}

// NewRecord builds a record from display values; pass math.NaN() for a missing rank.
func NewRecord(exam, subject string, score, rank float64) ExamRecord {
	return ExamRecord{Exam: ParseExam(exam), Subject: strings.TrimSpace(subject), Score: score, TotalRank: rank}
}

// HasScore reports whether the score cell held a value.
func (r ExamRecord) HasScore() bool { return !math.IsNaN(r.Score) }

// HasRank reports whether the rank cell held a value.
func (r ExamRecord) HasRank() bool { return !math.IsNaN(r.TotalRank) }

// Dataset is the in-memory record set plus the schema facts the analyzer needs.
type Dataset struct {
	Records []ExamRecord
	// HasRank is true when the source had a total_rank (or rank) column, even if empty.
	HasRank bool
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// Empty reports whether there are no records.
func (d Dataset) Empty() bool { return len(d.Records) == 0 }

// Clone returns a copy whose record slice does not alias d.
func (d Dataset) Clone() Dataset {
	out := Dataset{HasRank: d.HasRank}
	if d.Records != nil {
		out.Records = make([]ExamRecord, len(d.Records))
		copy(out.Records, d.Records)
	}
	return out
}
