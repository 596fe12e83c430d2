package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{in: "12.34", want: 1234},
		{in: "12,34", want: 1234},
		{in: " 7 ", want: 700},
		{in: "-3.5", want: -350},
		{in: "1.500", want: 150},
		{in: "100000000000", want: MaxAmount},
		{in: "-100000000000", want: -MaxAmount},
		{in: "0.005", wantErr: true},
		{in: "0.004", wantErr: true},
		{in: "49.995", wantErr: true},
		{in: "100000000000.01", wantErr: true},
		{in: "184467440737095526.16", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringAndFormat(t *testing.T) {
	assert.Equal(t, "30.00", Amount(3000).String())
	assert.Equal(t, "-0.05", Amount(-5).String())
	assert.Equal(t, "$1234.56", Amount(123456).Format())
	assert.Equal(t, "-$30.00", Amount(-3000).Format())
}

func TestFromDecimalRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, Amount(3334), FromDecimal(decimal.RequireFromString("33.335")))
	assert.Equal(t, Amount(-3334), FromDecimal(decimal.RequireFromString("-33.335")))
	assert.Equal(t, Amount(3333), FromDecimal(decimal.RequireFromString("33.3333")))
}

func TestJSON(t *testing.T) {
	type payload struct {
		Amount Amount `json:"amount"`
	}

	out, err := json.Marshal(payload{Amount: 9999})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"99.99"}`, string(out))

	var fromNumber payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.5}`), &fromNumber))
	assert.Equal(t, Amount(1250), fromNumber.Amount)

	var fromString payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"0.10"}`), &fromString))
	assert.Equal(t, Amount(10), fromString.Amount)

	var bad payload
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"ten"}`), &bad))

	for _, in := range []string{`{"amount":"184467440737095526.16"}`, `{"amount":0.004}`, `{"amount":"1e30"}`} {
		assert.ErrorIs(t, json.Unmarshal([]byte(in), &bad), ErrInvalidAmount, in)
	}
}

func TestScan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan(int64(4200)))
	assert.Equal(t, Amount(4200), a)

	require.NoError(t, a.Scan([]byte("150")))
	assert.Equal(t, Amount(150), a)

	assert.Error(t, a.Scan("nope"))
}

func TestSum(t *testing.T) {
	assert.Equal(t, Amount(0), Sum())
	assert.Equal(t, Amount(9999), Sum(3333, 3333, 3333))
}

func TestCheckedSum(t *testing.T) {
	const big = Amount(1 << 62)

	got, err := CheckedSum(3333, 3333, 3333)
	require.NoError(t, err)
	assert.Equal(t, Amount(9999), got)

	got, err = CheckedSum(big, -big, big)
	require.NoError(t, err)
	assert.Equal(t, big, got)

	_, err = CheckedSum(big, big, big, big+1000)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = CheckedSum(-big, -big, -1)
	assert.ErrorIs(t, err, ErrOverflow)
}
