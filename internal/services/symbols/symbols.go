// Package symbols maps user-facing tickers to the names used by persisted
// documents and by the live spot-price feed.
package symbols

import "strings"

const (
	SuffixNSE = ".NS"
	SuffixBSE = ".BO"
)

// index friendly name -> exchange symbol
var indexAliases = map[string]string{
	"NIFTY":     "^NSEI",
	"BANKNIFTY": "^NSEBANK",
}

// Canonical upper-cases and trims a ticker.
func Canonical(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// IndexFile returns the exchange symbol an index is stored under.
func IndexFile(ticker string) (string, bool) {
	s, ok := indexAliases[Canonical(ticker)]
	return s, ok
}

// Friendly maps an exchange index symbol back to its friendly name.
// Anything else is returned canonicalised with any .NS suffix removed.
func Friendly(symbol string) string {
	s := Canonical(symbol)
	for name, sym := range indexAliases {
		if sym == s {
			return name
		}
	}
	return strings.TrimSuffix(s, SuffixNSE)
}

// HasExchange reports whether a symbol is already qualified for lookup,
// either with an exchange suffix or as an index.
func HasExchange(symbol string) bool {
	return strings.HasPrefix(symbol, "^") ||
		strings.HasSuffix(symbol, SuffixNSE) ||
		strings.HasSuffix(symbol, SuffixBSE)
}

// LiveSymbol returns the key used in the live spot-price document.
// It is idempotent: LiveSymbol(LiveSymbol(x)) == LiveSymbol(x).
func LiveSymbol(ticker string) string {
	s := Canonical(ticker)
	if alias, ok := indexAliases[s]; ok {
		return alias
	}
	if HasExchange(s) {
		return s
	}
	return s + SuffixNSE
}

// Candidates lists the document names to try for a ticker, in order:
// the exact symbol, the .NS variant and the index alias.
func Candidates(ticker string) []string {
	s := Canonical(ticker)
	if s == "" {
		return nil
	}
	out := []string{s}
	if !HasExchange(s) {
		out = append(out, s+SuffixNSE)
	}
	if alias, ok := indexAliases[s]; ok {
		out = append(out, alias)
	}
	return out
}

// FromFilename strips a .json extension and canonicalises the rest.
func FromFilename(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		name = name[:len(name)-len(".json")]
	}
	return Canonical(name)
}

// Valid reports whether a symbol is safe to use as a document name.
func Valid(symbol string) bool {
	if symbol == "" || len(symbol) > 32 {
		return false
	}
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '^', r == '-', r == '_', r == '&':
		default:
			return false
		}
	}
	return true
}
