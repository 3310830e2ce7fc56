package interval

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundingwatch/internal/model"
)

const hourMs = int64(3_600_000)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestComputeAscendingWithPrice(t *testing.T) {
	records := []model.FundingRecord{
		{TimestampMs: 0, MarkPrice: price("10")},
		{TimestampMs: hourMs, MarkPrice: price("11")},
	}

	hours, p := Compute(records, model.Ascending)
	require.NotNil(t, hours)
	assert.True(t, hours.Equal(decimal.NewFromInt(1)), hours.String())
	require.NotNil(t, p)
	assert.True(t, p.Equal(decimal.NewFromInt(11)))

	mode, ok := Classify(hours)
	require.True(t, ok)
	assert.Equal(t, model.Mode1h, mode)
}

func TestComputeDescendingWithoutPrice(t *testing.T) {
	records := []model.FundingRecord{
		{TimestampMs: 8 * hourMs},
		{TimestampMs: 0},
	}

	hours, p := Compute(records, model.Descending)
	require.NotNil(t, hours)
	assert.True(t, hours.Equal(decimal.NewFromInt(8)), hours.String())
	assert.Nil(t, p)

	mode, ok := Classify(hours)
	require.True(t, ok)
	assert.Equal(t, model.Mode8h, mode)
}

func TestComputeUsesMostRecentPair(t *testing.T) {
	ascending := []model.FundingRecord{
		{TimestampMs: 0},
		{TimestampMs: 8 * hourMs},
		{TimestampMs: 12 * hourMs},
		{TimestampMs: 13 * hourMs},
	}
	hours, _ := Compute(ascending, model.Ascending)
	require.NotNil(t, hours)
	assert.Equal(t, "1", hours.String())

	descending := []model.FundingRecord{
		{TimestampMs: 20 * hourMs},
		{TimestampMs: 16 * hourMs},
		{TimestampMs: 8 * hourMs},
	}
	hours, _ = Compute(descending, model.Descending)
	require.NotNil(t, hours)
	assert.Equal(t, "4", hours.String())
}

func TestComputeRoundsToOneDecimal(t *testing.T) {
	// 7h59m52s between events, as seen when settlement lands a few seconds early.
	records := []model.FundingRecord{
		{TimestampMs: 0},
		{TimestampMs: 8*hourMs - 8_000},
	}
	hours, _ := Compute(records, model.Ascending)
	require.NotNil(t, hours)
	assert.Equal(t, "8", hours.String())

	records[1].TimestampMs = hourMs + 15*60_000
	hours, _ = Compute(records, model.Ascending)
	require.NotNil(t, hours)
	assert.Equal(t, "1.2", hours.String())

	records[1].TimestampMs = hourMs + 21*60_000
	hours, _ = Compute(records, model.Ascending)
	require.NotNil(t, hours)
	assert.Equal(t, "1.4", hours.String())
}

func TestComputeInsufficientRecords(t *testing.T) {
	for _, records := range [][]model.FundingRecord{nil, {}, {{TimestampMs: 1}}} {
		hours, p := Compute(records, model.Ascending)
		assert.Nil(t, hours)
		assert.Nil(t, p)

		_, ok := Classify(hours)
		assert.False(t, ok)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		hours string
		want  model.IntervalMode
	}{
		{"0", model.Mode1h},
		{"1", model.Mode1h},
		{"1.5", model.Mode1h},
		{"1.50001", model.Mode4h},
		{"2", model.Mode4h},
		{"4", model.Mode4h},
		{"5", model.Mode4h},
		{"5.0", model.Mode4h},
		{"5.00001", model.Mode8h},
		{"8", model.Mode8h},
		{"24", model.Mode8h},
	}
	for _, c := range cases {
		t.Run(c.hours, func(t *testing.T) {
			mode, ok := Classify(price(c.hours))
			require.True(t, ok)
			assert.Equal(t, c.want, mode)
		})
	}
}

func TestClassifyAlwaysYieldsKnownMode(t *testing.T) {
	for delta := int64(0); delta <= 48*hourMs; delta += 7 * 60_000 {
		records := []model.FundingRecord{{TimestampMs: 1_700_000_000_000}, {TimestampMs: 1_700_000_000_000 + delta}}
		hours, _ := Compute(records, model.Ascending)
		mode, ok := Classify(hours)
		require.True(t, ok)
		assert.True(t, mode.Valid(), "delta %d gave %q", delta, mode)
	}
}
