// Package extract assigns merged OCR lines to named semantic fields using
// regex patterns, spatial proximity to label text, and positional priors,
// one extractor per card type.
package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/ocr"
)

// Spatial tunables, normalized [0,1] distances in the bottom-origin box
// space. Empirically tuned; adjust rather than treat as invariants.
const (
	// LabelBelowSlack is how far below a label (smaller Y) a value line may
	// sit and still be attributed to it.
	LabelBelowSlack = 0.15
	// LabelRowSlack is the vertical band within which a value is treated
	// as sitting on the same row as its label.
	LabelRowSlack = 0.05
	// LabelIndentSlack is the horizontal offset allowed between a label
	// and the value line below it.
	LabelIndentSlack = 0.15
	// BottomRegionBoundary splits the card: a date line with Y below it is
	// in the bottom third, where the expiry is printed.
	BottomRegionBoundary = 0.30
	// UpperRegionFloor is the Y above which the name fallback searches.
	UpperRegionFloor = 0.55
)

var (
	zairyuNumberPattern  = regexp.MustCompile(`[A-Z]{2}[0-9]{8}[A-Z]{2}`)
	genericNumberPattern = regexp.MustCompile(`[A-Z0-9]{12}`)
	datePattern          = regexp.MustCompile(`(\d{4})\s?[.年/]\s?(\d{1,2})\s?[.月/]\s?(\d{1,2})日?`)
	uppercaseNamePattern = regexp.MustCompile(`^[A-Z][A-Z\s.'-]{2,49}$`)
)

// boilerplateTokens are issuer/government strings that must never be
// mistaken for a holder name.
var boilerplateTokens = []string{
	"JAPAN", "GOVERNMENT", "MINISTRY", "JUSTICE", "RESIDENCE", "CARD",
	"DRIVER", "LICENSE", "LICENCE", "NUMBER", "INDIVIDUAL", "PERIOD",
	"DATE", "BIRTH", "STATUS", "PUBLIC", "SAFETY", "COMMISSION",
}

// findCardNumber scans all lines for a card-number-like token, preferring
// the residence-card letter-digit-letter shape over a generic 12-character
// alphanumeric run.
func findCardNumber(fields []ocr.Field) string {
	for _, f := range fields {
		normalized := carddata.NormalizeCardNumber(f.Value)
		if m := zairyuNumberPattern.FindString(normalized); m != "" {
			return m
		}
	}
	for _, f := range fields {
		normalized := carddata.NormalizeCardNumber(f.Value)
		if m := genericNumberPattern.FindString(normalized); m != "" && carddata.IsCardNumberValid(m) {
			return m
		}
	}
	return ""
}

// findNearLabel locates the value line for a printed label: either on the
// same row to the label's right, or directly below it within the slack
// thresholds. Returns nil when no line qualifies.
func findNearLabel(fields []ocr.Field, labels ...string) *ocr.Field {
	labelField := findLine(fields, labels...)
	if labelField == nil {
		return nil
	}

	var sameRow, below *ocr.Field
	for i := range fields {
		f := &fields[i]
		if f == labelField || containsAny(f.Value, labels...) {
			continue
		}
		dy := labelField.Box.Y - f.Box.Y
		switch {
		case absFloat(dy) < LabelRowSlack && f.Box.X > labelField.Box.X:
			if sameRow == nil || f.Box.X < sameRow.Box.X {
				sameRow = f
			}
		case dy >= LabelRowSlack && dy <= LabelBelowSlack &&
			absFloat(f.Box.X-labelField.Box.X) <= LabelIndentSlack:
			if below == nil || f.Box.Y > below.Box.Y {
				below = f
			}
		}
	}
	if sameRow != nil {
		return sameRow
	}
	return below
}

// findLine returns the first field whose text contains any of the tokens.
func findLine(fields []ocr.Field, tokens ...string) *ocr.Field {
	for i := range fields {
		if containsAny(fields[i].Value, tokens...) {
			return &fields[i]
		}
	}
	return nil
}

func containsAny(s string, tokens ...string) bool {
	upper := strings.ToUpper(s)
	for _, tok := range tokens {
		if strings.Contains(upper, strings.ToUpper(tok)) {
			return true
		}
	}
	return false
}

// fallbackName searches the upper image region for an all-uppercase Latin
// line that is not issuer boilerplate.
func fallbackName(fields []ocr.Field) string {
	for _, f := range fields {
		if f.Box.Y < UpperRegionFloor {
			continue
		}
		candidate := strings.TrimSpace(f.Value)
		if !uppercaseNamePattern.MatchString(candidate) {
			continue
		}
		if containsAny(candidate, boilerplateTokens...) {
			continue
		}
		if !hasLetter(candidate) {
			continue
		}
		return candidate
	}
	return ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// dateCandidate is one date found in the line set, kept with its source
// line for keyword and positional disambiguation.
type dateCandidate struct {
	date  time.Time
	field ocr.Field
}

func findDates(fields []ocr.Field) []dateCandidate {
	var out []dateCandidate
	for _, f := range fields {
		for _, m := range datePattern.FindAllStringSubmatch(f.Value, -1) {
			if t, ok := buildDate(m[1], m[2], m[3]); ok {
				out = append(out, dateCandidate{date: t, field: f})
			}
		}
		if t, err := carddata.ParseEraDate(f.Value); err == nil {
			out = append(out, dateCandidate{date: t, field: f})
		}
	}
	return out
}

func buildDate(y, m, d string) (time.Time, bool) {
	t, err := time.Parse("2006-1-2", y+"-"+m+"-"+d)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var (
	expiryKeywords = []string{"満了", "まで有効", "有効期間", "PERIOD OF VALIDITY", "VALID"}
	birthKeywords  = []string{"生年月日", "DATE OF BIRTH", "BIRTH", "生"}
)

// assignDates splits candidates into expiry and date of birth. Contextual
// keywords win when present; otherwise a date in the bottom third of the
// card is the expiry. The expiry is removed from the pool before the birth
// date is chosen from the remainder.
func assignDates(cands []dateCandidate) (expiry, birth time.Time) {
	remaining := make([]dateCandidate, 0, len(cands))
	for _, c := range cands {
		if expiry.IsZero() && containsAny(c.field.Value, expiryKeywords...) {
			expiry = c.date
			continue
		}
		remaining = append(remaining, c)
	}
	if expiry.IsZero() {
		for i, c := range remaining {
			if c.field.Box.Y < BottomRegionBoundary {
				expiry = c.date
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	for _, c := range remaining {
		if containsAny(c.field.Value, birthKeywords...) {
			return expiry, c.date
		}
	}
	if len(remaining) > 0 {
		birth = remaining[0].date
	}
	return expiry, birth
}

// nationalityAllowlist is deliberately conservative: three uppercase
// letters alone are too easy to misread, so only codes from the known set
// are accepted.
var nationalityAllowlist = map[string]bool{
	"CHN": true, "VNM": true, "KOR": true, "PHL": true, "BRA": true,
	"NPL": true, "IDN": true, "MMR": true, "THA": true, "PER": true,
	"IND": true, "USA": true, "LKA": true, "KHM": true, "MNG": true,
	"PAK": true, "BGD": true, "GBR": true, "FRA": true, "DEU": true,
}

var threeLetterPattern = regexp.MustCompile(`\b[A-Z]{3}\b`)

func findNationality(fields []ocr.Field) string {
	for _, f := range fields {
		for _, m := range threeLetterPattern.FindAllString(strings.ToUpper(f.Value), -1) {
			if nationalityAllowlist[m] {
				return m
			}
		}
	}
	return ""
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
