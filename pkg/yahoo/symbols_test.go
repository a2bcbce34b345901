package yahoo

import (
	"reflect"
	"testing"
)

func TestSymbolCandidates(t *testing.T) {
	cases := []struct {
		name   string
		symbol string
		want   []string
	}{
		{
			name:   "bare US ticker tries US first then European books",
			symbol: "AAPL",
			want:   []string{"AAPL", "AAPL.L", "AAPL.DE", "AAPL.PA"},
		},
		{
			name:   "crypto marker maps to USD pair",
			symbol: "BTC.X",
			want:   []string{"BTC-USD"},
		},
		{
			name:   "known exchange suffix maps then falls back",
			symbol: "BARC.L",
			want:   []string{"BARC.L", "BARC"},
		},
		{
			name:   "xetra listing",
			symbol: "VOW3.DE",
			want:   []string{"VOW3.DE", "VOW3"},
		},
		{
			name:   "unknown suffix keeps raw symbol and base",
			symbol: "FOO.ZZ",
			want:   []string{"FOO.ZZ", "FOO"},
		},
		{
			name:   "lowercase input is normalized",
			symbol: "  nvda ",
			want:   []string{"NVDA", "NVDA.L", "NVDA.DE", "NVDA.PA"},
		},
		{
			name:   "empty input",
			symbol: "   ",
			want:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SymbolCandidates(tc.symbol)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("SymbolCandidates(%q) = %v, want %v", tc.symbol, got, tc.want)
			}
		})
	}
}
