package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indcore/internal/model"
)

func testBar() model.Bar {
	return model.NewBar("NSE:1", time.Unix(0, 0).UTC(), 10, 16, 8, 12, 500)
}

func TestResolver_Fields(t *testing.T) {
	b := testBar()
	cases := []struct {
		field Field
		want  float64
	}{
		{Close, 12},
		{Open, 10},
		{High, 16},
		{Low, 8},
		{Volume, 500},
		{HL2, 12},
		{HLC3, 12},
		{OHLC4, 11.5},
		{HLCC4, 12},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, FromField(tc.field).Value(b), 1e-12, tc.field.String())
	}
}

func TestResolver_ZeroValueIsClose(t *testing.T) {
	var r Resolver
	assert.Equal(t, 12.0, r.Value(testBar()))
	assert.Equal(t, "close", r.String())
}

func TestResolver_Projection(t *testing.T) {
	r, err := FromProjection(func(b model.Bar) float64 { return b.High - b.Low })
	require.NoError(t, err)
	assert.Equal(t, 8.0, r.Value(testBar()))
	assert.Equal(t, "custom", r.String())
}

func TestResolver_NilProjectionFails(t *testing.T) {
	_, err := FromProjection(nil)
	assert.ErrorIs(t, err, ErrNilProjection)
}

func TestParseField(t *testing.T) {
	for i := range fieldNames {
		f, err := ParseField(fieldNames[i])
		require.NoError(t, err)
		assert.Equal(t, Field(i), f)
	}

	f, err := ParseField("")
	require.NoError(t, err)
	assert.Equal(t, Close, f)

	f, err = ParseField(" Typical ")
	require.NoError(t, err)
	assert.Equal(t, HLC3, f)

	_, err = ParseField("vwap")
	assert.ErrorIs(t, err, ErrUnknownField)
}
