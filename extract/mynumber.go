package extract

import (
	"regexp"
	"strings"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/ocr"
	"github.com/sudachi-dev/cardscan/scanerr"
)

// myNumberPattern matches a 12-digit individual number with arbitrary
// single-character separators between groups.
var myNumberPattern = regexp.MustCompile(`\d{4}[\s.-]?\d{4}[\s.-]?\d{4}`)

// MyNumber extracts individual-number-card fields from a merged OCR line
// set. Any matched 12-digit number is truncated to its last four digits
// inside this function; the full number never leaves the extractor.
func MyNumber(fields []ocr.Field) (*carddata.MyNumberCardData, error) {
	if findLine(fields, "在留カード", "運転免許証") != nil {
		return nil, scanerr.New(scanerr.KindWrongCardType, "extract.mynumber")
	}

	name := extractName(fields)
	if name == "" {
		return nil, scanerr.ForField(scanerr.KindMissingRequiredField, "extract.mynumber", "name")
	}

	expiry, birth := assignDates(findDates(fields))

	data := &carddata.MyNumberCardData{
		NumberLast4: findMaskedNumber(fields),
		Name:        name,
		DateOfBirth: birth,
		ExpiryDate:  expiry,
	}
	if addr := findNearLabel(fields, "住所", "ADDRESS"); addr != nil {
		data.Address = strings.TrimSpace(addr.Value)
	}
	if sexLine := findLine(fields, "男"); sexLine != nil {
		data.Sex = carddata.SexMale
	} else if sexLine := findLine(fields, "女"); sexLine != nil {
		data.Sex = carddata.SexFemale
	}
	return data, nil
}

// findMaskedNumber locates an individual-number-like token and reduces it
// to the retainable suffix. The full digit string is a local variable only.
func findMaskedNumber(fields []ocr.Field) string {
	for _, f := range fields {
		if m := myNumberPattern.FindString(f.Value); m != "" {
			return carddata.LastFourDigits(m)
		}
	}
	return ""
}
