// Package cardscan acquires structured data from Japanese ID cards along
// two independent paths: reading the card's contactless chip, or running
// dual-engine text recognition over a photograph. Both converge on the same
// typed output model per card type.
package cardscan

import (
	"context"
	"image"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/extract"
	"github.com/sudachi-dev/cardscan/ocr"
	"github.com/sudachi-dev/cardscan/preprocess"
	"github.com/sudachi-dev/cardscan/scanerr"
	"github.com/sudachi-dev/cardscan/tlv"
	"github.com/sudachi-dev/cardscan/transport"
)

// ScanChip reads the card chip through an open transport client and parses
// the captured record into the requested card type. Driver's licenses have
// no supported chip path; request the photo path for those.
func ScanChip(ctx context.Context, client *transport.Client, cardType carddata.CardType, cardNumber string) (carddata.Card, error) {
	rec, err := client.BeginScan(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	switch cardType {
	case carddata.TypeZairyu:
		if kind := tlv.CardKind(rec); kind != "" && kind != "1" && kind != "2" {
			return nil, scanerr.New(scanerr.KindWrongCardType, "chip")
		}
		data, err := tlv.ParseResidenceCard(rec)
		if err != nil {
			return nil, err
		}
		return data, nil
	case carddata.TypeMyNumber:
		data, err := tlv.ParseMyNumberCard(rec)
		if err != nil {
			return nil, err
		}
		return data, nil
	default:
		return nil, scanerr.New(scanerr.KindWrongCardType, "chip")
	}
}

// ScanImage runs the photo path: quality assessment (advisory only),
// enhancement, dual-engine recognition, and field extraction for the
// requested card type. Quality issues are returned alongside the result so
// the caller can offer retake guidance even on success.
func ScanImage(ctx context.Context, dual *ocr.DualEngine, photo image.Image, cardType carddata.CardType) (carddata.Card, []preprocess.Issue, error) {
	_, issues := preprocess.AssessQuality(photo)
	enhanced := preprocess.Enhance(photo, preprocess.DefaultOptions())

	fields, err := dual.Scan(ctx, enhanced)
	if err != nil {
		return nil, issues, err
	}

	card, err := ExtractFields(fields, cardType)
	if err != nil {
		return nil, issues, err
	}
	return card, issues, nil
}

// ExtractFields applies the card-type-specific heuristics to an already
// merged line set. Exposed separately so callers with their own OCR source
// can still use the extractors.
func ExtractFields(fields []ocr.Field, cardType carddata.CardType) (carddata.Card, error) {
	switch cardType {
	case carddata.TypeZairyu:
		data, err := extract.Zairyu(fields)
		if err != nil {
			return nil, err
		}
		return *data, nil
	case carddata.TypeMyNumber:
		data, err := extract.MyNumber(fields)
		if err != nil {
			return nil, err
		}
		return *data, nil
	case carddata.TypeDriverLicense:
		data, err := extract.DriverLicense(fields)
		if err != nil {
			return nil, err
		}
		return *data, nil
	default:
		return nil, scanerr.New(scanerr.KindWrongCardType, "extract")
	}
}
