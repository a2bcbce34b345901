package yahoo

import "strings"

// eToro tickers carry an exchange suffix after a dot (e.g. "BARC.L",
// "VOW3.DE") or no suffix for US listings. Yahoo uses its own suffixes, so a
// cross-listed ticker may need a few candidates before one answers.
var exchangeSuffixes = map[string]string{
	"L":  ".L",  // London
	"DE": ".DE", // Xetra
	"F":  ".F",  // Frankfurt
	"PA": ".PA", // Paris
	"MI": ".MI", // Milan
	"AS": ".AS", // Amsterdam
	"MC": ".MC", // Madrid
	"SW": ".SW", // Swiss
	"ST": ".ST", // Stockholm
	"CO": ".CO", // Copenhagen
	"OL": ".OL", // Oslo
	"HE": ".HE", // Helsinki
	"HK": ".HK", // Hong Kong
	"T":  ".T",  // Tokyo
	"AX": ".AX", // Australia
	"TO": ".TO", // Toronto
}

// SymbolCandidates returns Yahoo symbols to try, most likely first. The
// input symbol is an eToro ticker.
func SymbolCandidates(symbol string) []string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil
	}

	// Crypto pairs ("BTC", "ETH") trade as <sym>-USD on Yahoo; eToro marks
	// some of them with a trailing ".X".
	if base, ok := strings.CutSuffix(symbol, ".X"); ok {
		return []string{base + "-USD"}
	}

	dot := strings.LastIndex(symbol, ".")
	if dot < 0 {
		// Bare ticker: try the US listing first, then the big European books.
		return []string{symbol, symbol + ".L", symbol + ".DE", symbol + ".PA"}
	}

	base, suffix := symbol[:dot], symbol[dot+1:]
	candidates := []string{}
	if mapped, ok := exchangeSuffixes[suffix]; ok {
		candidates = append(candidates, base+mapped)
	}
	// The raw symbol as given, then the bare base as a US fallback.
	candidates = append(candidates, symbol, base)

	return dedupe(candidates)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
