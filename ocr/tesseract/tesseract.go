// Package tesseract implements the ocr.Engine contract with the gosseract
// client as the Latin-script recognizer of the dual-engine pair.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/sudachi-dev/cardscan/ocr"
)

// Option mutates engine construction.
type Option func(*Engine)

// WithLanguages sets the trained-data hints (e.g. "eng", "jpn").
func WithLanguages(langs ...string) Option {
	return func(e *Engine) { e.languages = append([]string(nil), langs...) }
}

// WithPSM sets the page segmentation mode. Card faces respond well to
// sparse-text modes.
func WithPSM(mode int) Option {
	return func(e *Engine) { e.variables["tessedit_pageseg_mode"] = strconv.Itoa(mode) }
}

// WithWhitelist restricts recognition to the provided characters, useful
// for card-number and date re-reads.
func WithWhitelist(chars string) Option {
	return func(e *Engine) { e.variables["tessedit_char_whitelist"] = chars }
}

// WithDPI declares the effective capture DPI for layout heuristics.
func WithDPI(dpi int) Option {
	return func(e *Engine) { e.dpi = dpi }
}

// Engine wraps a gosseract client per recognition call.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
	variables     map[string]string
	dpi           int
}

func New(opts ...Option) *Engine {
	e := &Engine{
		clientFactory: gosseract.NewClient,
		languages:     []string{"jpn", "eng"},
		variables:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs line-level OCR over the preprocessed card image and
// returns raw line fields with normalized boxes.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]ocr.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if e.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.dpi)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range e.variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}

	bounds := img.Bounds()
	fields := make([]ocr.Field, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		fields = append(fields, ocr.Field{
			Name:       ocr.RawLine,
			Value:      text,
			Confidence: b.Confidence / 100.0,
			Box:        ocr.NormalizeBox(b.Box, bounds),
			Source:     ocr.Source(e.Name()),
		})
	}
	return fields, nil
}
