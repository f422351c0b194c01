package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTierBoundaries(t *testing.T) {
	cases := []struct {
		days int
		want Tier
	}{
		{-400, Tier1},
		{-1, Tier1},
		{0, Tier1},
		{1, Tier1},
		{2, Tier3},
		{3, Tier3},
		{4, Tier7},
		{7, Tier7},
		{8, Tier30},
		{30, Tier30},
		{31, TierExcluded},
		{365, TierExcluded},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyTier(tc.days), "days=%d", tc.days)
	}
}

func TestClassifyTierIsMonotonic(t *testing.T) {
	prev := ClassifyTier(-60)
	for d := -59; d <= 30; d++ {
		got := ClassifyTier(d)
		if got < prev {
			t.Fatalf("tier decreased at %d: %d -> %d", d, prev, got)
		}
		prev = got
	}
}

func TestDaysRemaining(t *testing.T) {
	ref := Date(2025, time.December, 10)

	assert.Equal(t, 1, DaysRemaining(Date(2025, time.December, 11), ref))
	assert.Equal(t, 0, DaysRemaining(ref, ref))
	assert.Equal(t, -1, DaysRemaining(Date(2025, time.December, 9), ref))
	assert.Equal(t, 53, DaysRemaining(Date(2026, time.February, 1), ref))
	assert.Equal(t, 366, DaysRemaining(Date(2024, time.March, 1), Date(2023, time.March, 1)))
}

func TestDaysRemainingIgnoresClockAndZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	end := time.Date(2025, time.December, 11, 23, 59, 0, 0, kolkata)
	ref := time.Date(2025, time.December, 10, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysRemaining(end, ref))
}

func TestDaysRemainingAntisymmetric(t *testing.T) {
	base := Date(2024, time.January, 1)
	for i := 0; i < 800; i += 37 {
		for j := 0; j < 800; j += 53 {
			a := base.AddDate(0, 0, i)
			b := base.AddDate(0, 0, j)
			assert.Equal(t, -DaysRemaining(a, b), DaysRemaining(b, a))
		}
	}
}

func TestReferenceDateUsesZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC is already the next day in Kolkata.
	now := time.Date(2025, time.December, 9, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, Date(2025, time.December, 10), ReferenceDate(now, kolkata))
	assert.Equal(t, Date(2025, time.December, 9), ReferenceDate(now, nil))
}

func TestExpiryPhrase(t *testing.T) {
	assert.Equal(t, "has expired", ExpiryPhrase(-5))
	assert.Equal(t, "has expired", ExpiryPhrase(-1))
	assert.Equal(t, "expires today", ExpiryPhrase(0))
	assert.Equal(t, "expires tomorrow", ExpiryPhrase(1))
	assert.Equal(t, "expires in 2 days", ExpiryPhrase(2))
	assert.Equal(t, "expires in 30 days", ExpiryPhrase(30))
}

func TestFormatAndParseDate(t *testing.T) {
	d := Date(2025, time.December, 1)
	assert.Equal(t, "01-12-2025", FormatDisplayDate(d))
	assert.Equal(t, "2025-12-01", FormatISODate(d))

	parsed, err := ParseDate(" 2025-12-01 ")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(d))

	_, err = ParseDate("01-12-2025")
	assert.Error(t, err)
}

func TestTierHelpers(t *testing.T) {
	assert.Equal(t, "Urgent (1 day)", Tier1.Label())
	assert.Equal(t, "30 Days", Tier30.Label())
	assert.Equal(t, "Unknown", TierExcluded.Label())
	assert.False(t, Tier(5).Valid())

	tier, ok := ParseTier("7")
	assert.True(t, ok)
	assert.Equal(t, Tier7, tier)
	_, ok = ParseTier("0")
	assert.False(t, ok)

	counts := NewTierCounts()
	assert.Len(t, counts, 4)
	counts[Tier3] += 2
	assert.Equal(t, 2, counts.Total())
}

func TestLoadLocationRejectsLocal(t *testing.T) {
	_, err := LoadLocation("Local")
	assert.Error(t, err)
	loc, err := LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}
