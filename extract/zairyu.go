package extract

import (
	"strings"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/ocr"
	"github.com/sudachi-dev/cardscan/scanerr"
	"github.com/sudachi-dev/cardscan/tlv"
)

// statusCandidates are the printed residence statuses matched by the
// substring fallback when no label-adjacent line is found.
var statusCandidates = []string{
	"永住者の配偶者等", "日本人の配偶者等", "技術・人文知識・国際業務",
	"高度専門職１号", "特定技能１号", "特定技能２号", "技能実習",
	"経営・管理", "特定活動", "家族滞在", "定住者", "永住者", "留学",
}

// Zairyu extracts residence-card fields from a merged OCR line set. It
// returns nil with an error when a mandatory field (name or card number)
// cannot be found.
func Zairyu(fields []ocr.Field) (*carddata.ZairyuCardData, error) {
	if findLine(fields, "運転免許証", "個人番号カード") != nil {
		return nil, scanerr.New(scanerr.KindWrongCardType, "extract.zairyu")
	}

	number := findCardNumber(fields)
	if number == "" {
		return nil, scanerr.ForField(scanerr.KindMissingRequiredField, "extract.zairyu", "card_number")
	}

	name := extractName(fields)
	if name == "" {
		return nil, scanerr.ForField(scanerr.KindMissingRequiredField, "extract.zairyu", "name")
	}

	expiry, birth := assignDates(findDates(fields))

	data := &carddata.ZairyuCardData{
		CardNumber:  number,
		Name:        name,
		DateOfBirth: birth,
		ExpiryDate:  expiry,
		Nationality: tlv.LookupNationality(findNationality(fields)),
		Status:      extractStatus(fields),
	}
	if addr := findNearLabel(fields, "住居地", "ADDRESS"); addr != nil {
		data.Address = strings.TrimSpace(addr.Value)
	}
	if findLine(fields, "就労制限なし") != nil {
		data.WorkPermitted = true
	}
	if period := findNearLabel(fields, "在留期間", "PERIOD OF STAY"); period != nil {
		data.PeriodOfStay = strings.TrimSpace(period.Value)
	}
	return data, nil
}

// extractName prefers a line adjacent to the name label and falls back to
// an uppercase Latin line in the upper region.
func extractName(fields []ocr.Field) string {
	if f := findNearLabel(fields, "氏名", "NAME"); f != nil {
		return strings.TrimSpace(f.Value)
	}
	return fallbackName(fields)
}

// extractStatus tries the status label first, then a substring match
// against the known status list. The mapped English rendering is returned;
// unknown statuses pass through raw.
func extractStatus(fields []ocr.Field) string {
	if f := findNearLabel(fields, "在留資格", "STATUS"); f != nil {
		return tlv.LookupStatus(strings.TrimSpace(f.Value))
	}
	for _, f := range fields {
		for _, status := range statusCandidates {
			if strings.Contains(f.Value, status) {
				return tlv.LookupStatus(status)
			}
		}
	}
	return ""
}
