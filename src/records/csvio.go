package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Column names as written on export. Lookups on import are case-insensitive and accept
// RankAlias for the rank column.
const (
	ColExam      = "exam"
	ColSubject   = "subject"
	ColScore     = "score"
	ColTotalRank = "total_rank"
	RankAlias    = "rank"
)

// ReadOptions controls CSV import.
type ReadOptions struct {
	// SkipMalformed skips rows that fail to parse and reports them in LoadResult.Skipped.
	// When false the first malformed row aborts the whole load.
	SkipMalformed bool
	// Source names the input in IOError values and log lines.
	Source string
}

// LoadResult is a successfully parsed table.
type LoadResult struct {
	Dataset  Dataset
	Skipped  []*DataError
	Encoding string // "utf-8" or "gbk"
}

type columnIndex struct {
	exam, subject, score, rank int
}

// ReadCSV parses an exam score table. The header row is required; the exam, subject and
// score columns are mandatory, total_rank (or rank) is optional.
func ReadCSV(r io.Reader, opts ReadOptions) (*LoadResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &IOError{Op: "read", Path: opts.Source, Err: err}
	}
	text, enc, err := decodeInput(raw)
	if err != nil {
		return nil, &IOError{Op: "decode", Path: opts.Source, Err: err}
	}
	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = detectDelimiter(text)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DataError{Field: "header", Reason: "empty input"}
	}
	if err != nil {
		return nil, &DataError{Field: "header", Reason: err.Error()}
	}
	cols, derr := mapColumns(header)
	if derr != nil {
		return nil, derr
	}

	res := &LoadResult{Encoding: enc, Dataset: Dataset{HasRank: cols.rank >= 0}}
	row := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				// ParseError is reported per physical line; keep reading only when skipping.
				de := &DataError{Row: row, Field: "row", Reason: pe.Err.Error()}
				if !opts.SkipMalformed {
					return nil, de
				}
				res.Skipped = append(res.Skipped, de)
				continue
			}
			return nil, &IOError{Op: "read", Path: opts.Source, Err: err}
		}
		if blankRow(fields) {
			continue
		}
		rec, de := parseRow(row, fields, cols)
		if de != nil {
			if !opts.SkipMalformed {
				return nil, de
			}
			Warnf("skipping malformed row: %v", de)
			res.Skipped = append(res.Skipped, de)
			continue
		}
		res.Dataset.Records = append(res.Dataset.Records, rec)
	}
	return res, nil
}

// LoadFile opens path and parses it with ReadCSV.
func LoadFile(path string, opts ReadOptions) (*LoadResult, error) {
	defer TimeTrack(time.Now(), "load "+path)
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	if opts.Source == "" {
		opts.Source = path
	}
	res, err := ReadCSV(f, opts)
	if err != nil {
		return nil, err
	}
	Infof("loaded %s: rows=%d skipped=%d rank_column=%t encoding=%s", path, res.Dataset.Len(), len(res.Skipped), res.Dataset.HasRank, res.Encoding)
	return res, nil
}

// WriteCSV writes ds with a header row. Dates are written as YYYY-MM-DD, missing values as
// empty cells. The rank column is written only when ds.HasRank.
func WriteCSV(w io.Writer, ds Dataset) error {
	if ds.Empty() {
		return &EmptyDataError{Op: "export"}
	}
	cw := csv.NewWriter(w)
	header := []string{ColExam, ColSubject, ColScore}
	if ds.HasRank {
		header = append(header, ColTotalRank)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range ds.Records {
		row := []string{r.Exam.Label(), r.Subject, formatCell(r.Score)}
		if ds.HasRank {
			row = append(row, formatCell(r.TotalRank))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveFile writes ds to path, appending ".csv" when the name has no such suffix.
// It returns the path actually written.
func SaveFile(path string, ds Dataset) (string, error) {
	if ds.Empty() {
		return "", &EmptyDataError{Op: "export"}
	}
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		path += ".csv"
	}
	f, err := os.Create(path)
	if err != nil {
		return "", &IOError{Op: "create", Path: path, Err: err}
	}
	if err := WriteCSV(f, ds); err != nil {
		f.Close()
		return "", &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &IOError{Op: "close", Path: path, Err: err}
	}
	Infof("exported %d records to %s", ds.Len(), path)
	return path, nil
}

// decodeInput strips a UTF-8 BOM and falls back to GBK for input that is not valid UTF-8
// (spreadsheet exports on Chinese Windows locales).
func decodeInput(raw []byte) ([]byte, string, error) {
	if utf8.Valid(raw) {
		out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
		if err != nil {
			return nil, "", err
		}
		return out, "utf-8", nil
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, "", fmt.Errorf("input is neither UTF-8 nor GBK: %w", err)
	}
	return out, "gbk", nil
}

// detectDelimiter picks the most frequent of ',', ';' and tab on the first line.
func detectDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

func mapColumns(header []string) (columnIndex, *DataError) {
	cols := columnIndex{exam: -1, subject: -1, score: -1, rank: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case ColExam:
			if cols.exam < 0 {
				cols.exam = i
			}
		case ColSubject:
			if cols.subject < 0 {
				cols.subject = i
			}
		case ColScore:
			if cols.score < 0 {
				cols.score = i
			}
		case ColTotalRank, RankAlias:
			if cols.rank < 0 {
				cols.rank = i
			}
		}
	}
	for _, req := range []struct {
		name string
		idx  int
	}{{ColExam, cols.exam}, {ColSubject, cols.subject}, {ColScore, cols.score}} {
		if req.idx < 0 {
			return cols, &DataError{Field: req.name, Reason: "missing column"}
		}
	}
	return cols, nil
}

func parseRow(row int, fields []string, cols columnIndex) (ExamRecord, *DataError) {
	cell := func(i int) string {
		if i < 0 || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}
	rec := ExamRecord{Row: row, TotalRank: math.NaN()}
	examRaw := cell(cols.exam)
	if examRaw == "" {
		return rec, &DataError{Row: row, Field: ColExam, Reason: "empty"}
	}
	rec.Exam = ParseExam(examRaw)
	rec.Subject = cell(cols.subject)
	if rec.Subject == "" {
		return rec, &DataError{Row: row, Field: ColSubject, Reason: "empty"}
	}
	score, err := parseNumber(cell(cols.score))
	if err != nil {
		return rec, &DataError{Row: row, Field: ColScore, Value: cell(cols.score), Reason: err.Error()}
	}
	rec.Score = score
	if cols.rank >= 0 {
		rank, err := parseNumber(cell(cols.rank))
		if err != nil {
			return rec, &DataError{Row: row, Field: ColTotalRank, Value: cell(cols.rank), Reason: err.Error()}
		}
		rec.TotalRank = rank
	}
	return rec, nil
}

// parseNumber returns NaN for an empty cell and an error for anything non-numeric.
func parseNumber(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
