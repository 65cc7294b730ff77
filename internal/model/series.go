package model

import (
	"cagedcli/pkg/contracts/domain"
)

// Series is an evenly spaced monthly mean-wage series for one demographic
// category. Values[i] belongs to Start plus i months.
type Series struct {
	Start  domain.Period
	Values []float64
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Values) }

// End returns the period of the last observation.
func (s *Series) End() domain.Period {
	p := s.Start
	for i := 1; i < len(s.Values); i++ {
		p = p.Next()
	}
	return p
}

// BuildSeries assembles the monthly series for one (dimension, category)
// from aggregate rows. Low-confidence groups are unusable, and months whose
// quality weight falls below minWeight are excluded the same way the
// original pipeline dropped badly covered months.
//
// SARIMA needs an evenly spaced series, so the result is the longest
// contiguous run of usable months ending at the most recent one; an
// interior gap therefore truncates history rather than silently joining
// across it.
func BuildSeries(rows []domain.AggregateRow, quality map[domain.Period]*domain.QualityReport,
	minWeight float64, dim domain.Dimension, category string) *Series {

	usable := make(map[domain.Period]float64)
	var last domain.Period
	haveAny := false

	for i := range rows {
		row := &rows[i]
		if row.Dimension != dim || row.Category != category {
			continue
		}
		mean, ok := row.MeanWage()
		if !ok {
			continue
		}
		if q := quality[row.Period]; q != nil && q.Weight() < minWeight {
			continue
		}
		usable[row.Period] = mean
		if !haveAny || last.Before(row.Period) {
			last = row.Period
		}
		haveAny = true
	}
	if !haveAny {
		return &Series{}
	}

	// Walk backwards from the newest usable month until the run breaks.
	var values []float64
	period := last
	for {
		v, ok := usable[period]
		if !ok {
			break
		}
		values = append(values, v)
		period = prevPeriod(period)
	}

	// values were collected newest-first.
	reverse(values)
	start := last
	for i := 1; i < len(values); i++ {
		start = prevPeriod(start)
	}
	return &Series{Start: start, Values: values}
}

func prevPeriod(p domain.Period) domain.Period {
	if p.Month == 1 {
		return domain.Period{Year: p.Year - 1, Month: 12}
	}
	return domain.Period{Year: p.Year, Month: p.Month - 1}
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
