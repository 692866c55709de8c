package analysis

import "math"

// SubjectSummary aggregates one subject across all exams where it was recorded.
type SubjectSummary struct {
	Subject     string
	Count       int
	Avg         float64
	Best        float64
	Worst       float64
	Latest      float64
	LatestExam  string
	FirstExam   string
	ChangeTotal float64 // Latest minus the first recorded score
}

// SummarizeSubjects returns one summary per subject in Subjects order.
func SummarizeSubjects(p *Prepared) []SubjectSummary {
	if p.Empty() {
		return nil
	}
	out := make([]SubjectSummary, 0, len(p.Subjects))
	for _, subj := range p.Subjects {
		s := SubjectSummary{Subject: subj, Best: -math.MaxFloat64, Worst: math.MaxFloat64}
		first := math.NaN()
		sum := 0.0
		for i := range p.Exams {
			v, ok := p.Score(i, subj)
			if !ok {
				continue
			}
			if math.IsNaN(first) {
				first = v
				s.FirstExam = p.XLabels[i]
			}
			s.Count++
			sum += v
			if v > s.Best {
				s.Best = v
			}
			if v < s.Worst {
				s.Worst = v
			}
			s.Latest = v
			s.LatestExam = p.XLabels[i]
		}
		if s.Count == 0 {
			continue
		}
		s.Avg = sum / float64(s.Count)
		s.ChangeTotal = s.Latest - first
		out = append(out, s)
	}
	return out
}

// Comparison contrasts the latest exam with the average of all earlier exams.
type Comparison struct {
	LastExam      string
	LastTotal     float64
	PrevAvgTotal  float64
	TotalDeltaPct float64
	HasRank       bool
	LastRank      float64
	PrevRank      float64 // rank at the closest earlier exam that has one
	RankDelta     float64 // positive means the rank improved (smaller number)
}

// CompareLastVsPrevious returns the delta of the latest total versus the mean of the
// earlier totals, plus the rank movement versus the previous ranked exam. It needs at
// least two exams with totals; otherwise ok is false.
func CompareLastVsPrevious(p *Prepared) (c Comparison, ok bool) {
	if p.Empty() {
		return c, false
	}
	var idx []int
	for i, v := range p.Totals {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return c, false
	}
	last := idx[len(idx)-1]
	c.LastExam = p.XLabels[last]
	c.LastTotal = p.Totals[last]
	for _, i := range idx[:len(idx)-1] {
		c.PrevAvgTotal += p.Totals[i]
	}
	c.PrevAvgTotal /= float64(len(idx) - 1)
	if c.PrevAvgTotal != 0 {
		c.TotalDeltaPct = (c.LastTotal - c.PrevAvgTotal) / c.PrevAvgTotal * 100
	}
	if p.Ranks != nil && !math.IsNaN(p.Ranks[last]) {
		for i := last - 1; i >= 0; i-- {
			if !math.IsNaN(p.Ranks[i]) {
				c.HasRank = true
				c.LastRank = p.Ranks[last]
				c.PrevRank = p.Ranks[i]
				c.RankDelta = c.PrevRank - c.LastRank
				break
			}
		}
	}
	return c, true
}
