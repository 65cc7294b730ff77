package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Period identifies one CAGED reference month (competência) in yyyymm form.
// The FTP layout, the clean CSV names and every store table are keyed by it.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// ParsePeriod parses a yyyymm string such as "202301".
func ParsePeriod(s string) (Period, error) {
	if len(s) != 6 {
		return Period{}, fmt.Errorf("invalid period %q: want yyyymm", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	year, month := n/100, n%100
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid period %q: month out of range", s)
	}
	if year < 2020 || year > 2100 {
		// Novo CAGED starts in January 2020; anything earlier is the old layout.
		return Period{}, fmt.Errorf("invalid period %q: year out of range", s)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// MustParsePeriod is ParsePeriod for test fixtures and constants.
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the yyyymm form used in file names and FTP paths.
func (p Period) String() string {
	return fmt.Sprintf("%04d%02d", p.Year, int(p.Month))
}

// Key returns the yyyy-mm form used as the store and chart axis key.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Sub returns the number of months from other to p (p - other).
func (p Period) Sub(other Period) int {
	return (p.Year-other.Year)*12 + int(p.Month) - int(other.Month)
}

// Time returns the first day of the month in UTC.
func (p Period) Time() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether p is the zero period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}
