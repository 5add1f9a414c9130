package extract

import (
	"regexp"
	"strings"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/ocr"
	"github.com/sudachi-dev/cardscan/scanerr"
)

var licenseNumberPattern = regexp.MustCompile(`第?\s?(\d{12})\s?号?`)

// conditionTokens are the printed licence conditions worth carrying over.
var conditionTokens = []string{"眼鏡等", "AT車に限る", "準中型で運転できる準中型車は準中型車（５ｔ）に限る", "中型車は中型車（８ｔ）に限る"}

// DriverLicense extracts driver's-license fields from a merged OCR line
// set. License dates are printed in era form, which findDates already
// handles alongside Western dates.
func DriverLicense(fields []ocr.Field) (*carddata.DriverLicenseData, error) {
	if findLine(fields, "在留カード", "個人番号") != nil {
		return nil, scanerr.New(scanerr.KindWrongCardType, "extract.license")
	}

	number := findLicenseNumber(fields)
	if number == "" {
		return nil, scanerr.ForField(scanerr.KindMissingRequiredField, "extract.license", "license_number")
	}
	name := extractName(fields)
	if name == "" {
		return nil, scanerr.ForField(scanerr.KindMissingRequiredField, "extract.license", "name")
	}

	cands := findDates(fields)
	expiry, birth := assignDates(cands)

	data := &carddata.DriverLicenseData{
		LicenseNumber: number,
		Name:          name,
		DateOfBirth:   birth,
		ExpiryDate:    expiry,
		Prefecture:    findIssuingPrefecture(fields),
		Classes:       findClasses(fields),
		Conditions:    findConditions(fields),
	}
	// The issue date line carries a 交付 marker next to the date.
	for _, c := range cands {
		if strings.Contains(c.field.Value, "交付") {
			data.IssueDate = c.date
			break
		}
	}
	if addr := findNearLabel(fields, "住所", "ADDRESS"); addr != nil {
		data.Address = strings.TrimSpace(addr.Value)
	}
	return data, nil
}

func findLicenseNumber(fields []ocr.Field) string {
	for _, f := range fields {
		if m := licenseNumberPattern.FindStringSubmatch(f.Value); m != nil {
			return m[1]
		}
	}
	return ""
}

// findIssuingPrefecture reads the prefecture out of the public safety
// commission line (e.g. 東京都公安委員会).
func findIssuingPrefecture(fields []ocr.Field) carddata.Prefecture {
	if f := findLine(fields, "公安委員会"); f != nil {
		return carddata.MatchPrefecture(f.Value)
	}
	for _, f := range fields {
		if p := carddata.MatchPrefecture(f.Value); p != carddata.PrefectureUnknown {
			return p
		}
	}
	return carddata.PrefectureUnknown
}

// findClasses collects licence class tokens from the class grid in the
// lower half of the card; a token anywhere else (e.g. inside a condition
// string) would double count, so matches above the midline are ignored.
func findClasses(fields []ocr.Field) []carddata.LicenseClass {
	seen := make(map[carddata.LicenseClass]bool)
	var out []carddata.LicenseClass
	for _, f := range fields {
		if f.Box.Y > 0.5 {
			continue
		}
		for _, class := range carddata.AllLicenseClasses {
			if !seen[class] && strings.Contains(f.Value, string(class)) {
				seen[class] = true
				out = append(out, class)
			}
		}
	}
	return out
}

func findConditions(fields []ocr.Field) string {
	if f := findNearLabel(fields, "免許の条件等"); f != nil {
		return strings.TrimSpace(f.Value)
	}
	for _, f := range fields {
		for _, tok := range conditionTokens {
			if strings.Contains(f.Value, tok) {
				return tok
			}
		}
	}
	return ""
}
