package tlv

import (
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/chip"
	"github.com/sudachi-dev/cardscan/scanerr"
)

// Tags used by the common file (EF01/EF02).
const (
	tagSpecVersion = 0xC0
	tagCardNumber  = 0xC1
	tagCardKind    = 0xC2
)

// Tags used by the personal-data file (DF1/EF01).
const (
	tagName          = 0xC4
	tagSex           = 0xC5
	tagDateOfBirth   = 0xC6
	tagNationality   = 0xC7
	tagAddress       = 0xC8
	tagStatus        = 0xC9
	tagPeriodOfStay  = 0xCA
	tagExpiryDate    = 0xCB
	tagWorkPermitted = 0xCC
	tagMyNumber      = 0xCD
)

// ParseResidenceCard decodes a chip record into residence-card data. A
// structurally valid record without a name entry is a hard failure; any
// other missing tag just leaves its field zero.
func ParseResidenceCard(rec chip.Record) (carddata.ZairyuCardData, error) {
	common := entryMap(rec, chip.FileCommon)
	personal := entryMap(rec, chip.FilePersonal)

	name := decodeText(personal[tagName])
	if name == "" {
		return carddata.ZairyuCardData{},
			scanerr.ForField(scanerr.KindMissingRequiredField, "tlv", "name")
	}

	data := carddata.ZairyuCardData{
		CardNumber:    strings.ToUpper(decodeText(common[tagCardNumber])),
		Name:          name,
		Sex:           decodeSex(personal[tagSex]),
		Nationality:   LookupNationality(decodeText(personal[tagNationality])),
		Address:       decodeText(personal[tagAddress]),
		Status:        LookupStatus(decodeText(personal[tagStatus])),
		PeriodOfStay:  decodeText(personal[tagPeriodOfStay]),
		WorkPermitted: decodeText(personal[tagWorkPermitted]) == "1",
	}
	if t, err := carddata.ParseNumericDate(decodeText(personal[tagDateOfBirth])); err == nil {
		data.DateOfBirth = t
	}
	if t, err := carddata.ParseNumericDate(decodeText(personal[tagExpiryDate])); err == nil {
		data.ExpiryDate = t
	}
	return data, nil
}

// ParseMyNumberCard decodes a chip record into individual-number-card data.
// The individual number entry, when present, is reduced to its last four
// digits before it leaves this function; the full value is never returned.
func ParseMyNumberCard(rec chip.Record) (carddata.MyNumberCardData, error) {
	personal := entryMap(rec, chip.FilePersonal)

	name := decodeText(personal[tagName])
	if name == "" {
		return carddata.MyNumberCardData{},
			scanerr.ForField(scanerr.KindMissingRequiredField, "tlv", "name")
	}

	data := carddata.MyNumberCardData{
		NumberLast4: carddata.LastFourDigits(decodeText(personal[tagMyNumber])),
		Name:        name,
		Sex:         decodeSex(personal[tagSex]),
		Address:     decodeText(personal[tagAddress]),
	}
	if t, err := carddata.ParseNumericDate(decodeText(personal[tagDateOfBirth])); err == nil {
		data.DateOfBirth = t
	}
	if t, err := carddata.ParseNumericDate(decodeText(personal[tagExpiryDate])); err == nil {
		data.ExpiryDate = t
	}
	return data, nil
}

// CardKind reads the EF02 card-kind marker: "1" for a residence card, "2"
// for a special permanent resident certificate. Empty when absent.
func CardKind(rec chip.Record) string {
	return decodeText(entryMap(rec, chip.FileCardKind)[tagCardKind])
}

func entryMap(rec chip.Record, file string) map[byte][]byte {
	m := make(map[byte][]byte)
	blob, ok := rec.Lookup(file)
	if !ok {
		return m
	}
	for _, e := range ParseEntries(blob) {
		m[e.Tag] = e.Value
	}
	return m
}

// decodeText converts a value using the card's Shift JIS encoding, falling
// back to the raw bytes when the value is plain ASCII or the decode fails.
func decodeText(v []byte) string {
	if len(v) == 0 {
		return ""
	}
	ascii := true
	for _, b := range v {
		if b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return strings.TrimSpace(string(v))
	}
	decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), v)
	if err != nil {
		return strings.TrimSpace(string(v))
	}
	return strings.TrimSpace(string(decoded))
}

func decodeSex(v []byte) carddata.Sex {
	switch decodeText(v) {
	case "1", "M", "男":
		return carddata.SexMale
	case "2", "F", "女":
		return carddata.SexFemale
	}
	return ""
}
