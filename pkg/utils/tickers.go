// Package utils provides small shared helpers: NSE ticker normalization and
// Indian market time utilities.
package utils

import "strings"

// Common NSE ticker aliases. The AI provider and users both vary in how they
// spell tickers; map the frequent variants to the canonical symbol.
var tickerAliases = map[string]string{
	"RIL":           "RELIANCE",
	"INFOSYS":       "INFY",
	"HDFC BANK":     "HDFCBANK",
	"ICICI BANK":    "ICICIBANK",
	"SBI":           "SBIN",
	"AIRTEL":        "BHARTIARTL",
	"L&T":           "LT",
	"TATA MOTORS":   "TATAMOTORS",
	"TATA STEEL":    "TATASTEEL",
	"HCL TECH":      "HCLTECH",
	"KOTAK":         "KOTAKBANK",
	"AXIS BANK":     "AXISBANK",
	"SUN PHARMA":    "SUNPHARMA",
	"ASIAN PAINTS":  "ASIANPAINT",
	"NESTLE":        "NESTLEIND",
	"ULTRATECH":     "ULTRACEMCO",
	"TECH MAHINDRA": "TECHM",
	"MAHINDRA":      "M&M",
	"ADANI":         "ADANIENT",
	"HUL":           "HINDUNILVR",
	"COAL INDIA":    "COALINDIA",
	"BAJAJ FIN":     "BAJFINANCE",
}

// NormalizeTicker normalizes a ticker to the canonical uppercase NSE symbol.
// It handles whitespace, the $ chat prefix, and common aliases.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// ValidTicker reports whether a normalized ticker looks like an NSE symbol:
// 1-20 chars drawn from A-Z, 0-9, '&', '-' and '.'.
func ValidTicker(ticker string) bool {
	if len(ticker) == 0 || len(ticker) > 20 {
		return false
	}
	for _, r := range ticker {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '&' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}
