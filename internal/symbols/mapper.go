package symbols

import "strings"

// quoteAssets are stripped from concatenated symbols, longest first.
var quoteAssets = []string{"USDT", "USDC", "BUSD", "USD"}

// DisplayName derives the short instrument name used in messages from an
// exchange symbol.
// Examples:
//
//	binance RIVERUSDT       -> RIVER
//	okx     RIVER-USDT-SWAP -> RIVER
//	bybit   1000PEPEUSDT    -> 1000PEPE
//
// Unknown exchanges and symbols without a recognised quote asset are
// returned uppercased and otherwise unchanged.
func DisplayName(exchange, sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	switch strings.ToLower(exchange) {
	case "okx":
		sym = strings.TrimSuffix(sym, "-SWAP")
		if i := strings.Index(sym, "-"); i > 0 {
			return sym[:i]
		}
	case "binance", "bybit":
		for _, quote := range quoteAssets {
			if base := strings.TrimSuffix(sym, quote); base != sym && base != "" {
				return base
			}
		}
	default:
		// others already use the desired format
	}
	return sym
}
