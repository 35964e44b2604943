package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultCeiling is the upper sanity bound for extracted totals, in whole
// currency units. Values at or above it are far more likely phone numbers,
// dates or reference ids misread as currency than real receipt totals.
const DefaultCeiling = 10000

// Token of currency shape: digits, one separator, exactly two decimals.
// The trailing group rejects longer digit runs (e.g. thousands groups).
var amountTokenRE = regexp.MustCompile(`([0-9]+[.,][0-9]{2})([^0-9]|$)`)

var currencyMarkerRE = regexp.MustCompile(`(?i)S/`)

// "total" as a standalone token, so SUBTOTAL lines do not anchor phase 1.
var totalKeywordRE = regexp.MustCompile(`(?i)\btotal\b`)

// ExtractAmount parses recognized receipt text into the single most probable
// monetary total using the default ceiling. The boolean reports whether any
// plausible amount was found; a zero return with ok=false is "not found",
// never an amount of zero.
func ExtractAmount(text string) (float64, bool) {
	return ExtractAmountWithCeiling(text, DefaultCeiling)
}

// ExtractAmountWithCeiling is ExtractAmount with an explicit sanity bound.
// Deterministic: identical text always yields the identical result.
//
// Phase 1 anchors on a "total" keyword line; phase 2 falls back to the
// largest currency-shaped figure anywhere in the text, on the assumption
// that subtotals, taxes and tips are all components of the total.
func ExtractAmountWithCeiling(text string, ceiling float64) (float64, bool) {
	if amt, ok := amountNearTotal(text); ok {
		return amt, true
	}
	return largestCandidate(text, ceiling)
}

// amountNearTotal scans for the first line containing "total" and looks for
// a currency-shaped token on that line, then on the immediately following
// line. Only the first keyword line is considered; a keyword line with no
// adjacent numeric token means phase 1 found nothing.
func amountNearTotal(text string) (float64, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !totalKeywordRE.MatchString(line) {
			continue
		}
		if m := amountTokenRE.FindStringSubmatch(line); m != nil {
			return parsePlainToken(m[1])
		}
		if i+1 < len(lines) {
			if m := amountTokenRE.FindStringSubmatch(lines[i+1]); m != nil {
				return parsePlainToken(m[1])
			}
		}
		return 0, false
	}
	return 0, false
}

// largestCandidate strips everything that cannot be part of a number,
// normalizes each surviving token's separators and returns the largest
// value inside (0, ceiling). Tokens without an explicit decimal point are
// discarded: bare integers are dates, quantities or ids, not currency totals.
func largestCandidate(text string, ceiling float64) (float64, bool) {
	clean := currencyMarkerRE.ReplaceAllString(text, "")
	clean = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '\n' {
			return r
		}
		return ' '
	}, clean)

	best := 0.0
	found := false
	for _, tok := range strings.Fields(clean) {
		if len(tok) < 3 { // too short to be a priced amount, likely noise
			continue
		}
		norm, ok := normalizeSeparators(tok)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(norm, 64)
		if err != nil {
			continue
		}
		if v <= 0 || v >= ceiling {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// normalizeSeparators rewrites a raw numeric token into strconv form.
// A single comma acts as the decimal point; with multiple separators the
// last one is the decimal point and earlier ones are thousands grouping
// (1.200.50 -> 1200.50). Tokens carrying no separator at all are rejected.
func normalizeSeparators(tok string) (string, bool) {
	s := strings.ReplaceAll(tok, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) == 1 {
		return "", false
	}
	if len(parts) > 2 {
		s = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}
	return s, true
}

// parsePlainToken parses a phase-1 token (digits, one separator, two
// decimals) after normalizing the separator to a dot.
func parsePlainToken(tok string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
