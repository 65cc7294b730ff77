package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	t.Run("valid period", func(t *testing.T) {
		p, err := ParsePeriod("202301")
		require.NoError(t, err)
		assert.Equal(t, 2023, p.Year)
		assert.Equal(t, time.January, p.Month)
	})

	t.Run("round trip", func(t *testing.T) {
		for _, s := range []string{"202001", "202312", "202506"} {
			p, err := ParsePeriod(s)
			require.NoError(t, err)
			assert.Equal(t, s, p.String())
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, s := range []string{"", "2023", "2023-01", "202313", "202300", "201912", "abc123"} {
			_, err := ParsePeriod(s)
			assert.Error(t, err, "input %q", s)
		}
	})
}

func TestPeriodKey(t *testing.T) {
	assert.Equal(t, "2024-03", MustParsePeriod("202403").Key())
}

func TestPeriodNext(t *testing.T) {
	assert.Equal(t, MustParsePeriod("202302"), MustParsePeriod("202301").Next())
	assert.Equal(t, MustParsePeriod("202401"), MustParsePeriod("202312").Next())
}

func TestPeriodBefore(t *testing.T) {
	a := MustParsePeriod("202311")
	b := MustParsePeriod("202402")
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))
	assert.False(t, a.Before(a))
}

func TestPeriodSub(t *testing.T) {
	assert.Equal(t, 0, MustParsePeriod("202301").Sub(MustParsePeriod("202301")))
	assert.Equal(t, 14, MustParsePeriod("202403").Sub(MustParsePeriod("202301")))
	assert.Equal(t, -1, MustParsePeriod("202212").Sub(MustParsePeriod("202301")))
}

func TestPeriodTime(t *testing.T) {
	got := MustParsePeriod("202106").Time()
	assert.Equal(t, time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC), got)
}
