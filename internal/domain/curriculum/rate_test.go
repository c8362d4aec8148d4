package curriculum

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-economy/internal/domain/shared"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    Rate
		wantErr bool
	}{
		{in: "4", want: 8},
		{in: "4.0", want: 8},
		{in: "4.5", want: 9},
		{in: "4.50", want: 9},
		{in: "0", want: 0},
		{in: "1.25", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRate(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, shared.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRate_String(t *testing.T) {
	assert.Equal(t, "4", QuarterRate(4).String())
	assert.Equal(t, "1.5", Rate(3).String())
}

func TestRate_SplitWholeRateKeepsFlag(t *testing.T) {
	amount, flag := QuarterRate(4).Split(true)
	assert.Equal(t, int64(4), amount)
	assert.True(t, flag)

	amount, flag = QuarterRate(4).Split(false)
	assert.Equal(t, int64(4), amount)
	assert.False(t, flag)
}

func TestRate_SplitAlternatesFloorAndCeil(t *testing.T) {
	rate := Rate(3) // 1.5 quarters

	first, flag := rate.Split(false)
	second, flag := rate.Split(flag)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.False(t, flag)

	// any two consecutive lessons sum to exactly twice the rate
	var total int64
	flag = true
	for i := 0; i < 10; i++ {
		var amount int64
		amount, flag = rate.Split(flag)
		total += amount
	}
	assert.Equal(t, int64(15), total)
}

func TestTrack_Ordering(t *testing.T) {
	assert.Equal(t, 0, White.Ordinal())
	assert.Equal(t, 8, Black.Ordinal())
	assert.Equal(t, -1, Track("PINK").Ordinal())
	assert.True(t, Yellow.Before(Green))
	assert.True(t, Black.IsLast())

	next, ok := Brown.Next()
	assert.True(t, ok)
	assert.Equal(t, Red, next)

	_, ok = Black.Next()
	assert.False(t, ok)
}

func TestParsePosition(t *testing.T) {
	pos, err := ParsePosition("yellow/2/7")
	require.NoError(t, err)
	assert.Equal(t, Position{Track: Yellow, Stage: 2, Unit: 7}, pos)
	assert.Equal(t, "YELLOW/2/7", pos.String())

	for _, bad := range []string{"WHITE/1", "PINK/1/1", "WHITE/x/1", "WHITE/1/y"} {
		_, err := ParsePosition(bad)
		assert.True(t, errors.Is(err, shared.ErrInvalidPosition), bad)
	}
}
