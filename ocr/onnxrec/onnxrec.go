// Package onnxrec implements the ocr.Engine contract with a line recognizer
// running on ONNX Runtime. It is the second, independent engine of the dual
// pair: a detection-free CRNN-style model that consumes fixed-height line
// strips cut from the binarized card image and emits a CTC character
// sequence per strip.
package onnxrec

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"strings"
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/sudachi-dev/cardscan/ocr"
)

// Model input geometry. Line strips are resampled to this shape.
const (
	lineHeight = 48
	lineWidth  = 640
	timesteps  = 160 // lineWidth / 4, the model's downsampling factor
)

// minDarkPerRow is the dark-pixel count below which a row is treated as
// inter-line whitespace during segmentation.
const minDarkPerRow = 4

// Recognizer drives one ONNX session. The session owns pre-allocated
// input/output tensors, so recognition calls are serialized internally.
type Recognizer struct {
	mu           sync.Mutex
	session      *onnxruntime.AdvancedSession
	inputTensor  *onnxruntime.Tensor[float32]
	outputTensor *onnxruntime.Tensor[float32]
	charset      []rune
	numClasses   int
}

// New loads the recognition model and its charset table (one character per
// line; class 0 is the CTC blank). The ONNX Runtime shared library path may
// be overridden via ONNXRUNTIME_SHARED_LIBRARY_PATH.
func New(modelPath, charsetPath string) (*Recognizer, error) {
	if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
		onnxruntime.SetSharedLibraryPath(p)
	}
	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	charset, err := loadCharset(charsetPath)
	if err != nil {
		return nil, err
	}
	numClasses := len(charset) + 1 // blank

	inputShape := onnxruntime.NewShape(1, 1, lineHeight, lineWidth)
	inputTensor, err := onnxruntime.NewTensor(inputShape, make([]float32, lineHeight*lineWidth))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputShape := onnxruntime.NewShape(1, timesteps, int64(numClasses))
	outputTensor, err := onnxruntime.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := onnxruntime.NewAdvancedSession(modelPath,
		[]string{"image"},
		[]string{"logits"},
		[]onnxruntime.Value{inputTensor},
		[]onnxruntime.Value{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Recognizer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		charset:      charset,
		numClasses:   numClasses,
	}, nil
}

// Close releases the session and its tensors.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.Destroy()
		r.session = nil
	}
	if r.inputTensor != nil {
		r.inputTensor.Destroy()
		r.inputTensor = nil
	}
	if r.outputTensor != nil {
		r.outputTensor.Destroy()
		r.outputTensor = nil
	}
	return nil
}

func (r *Recognizer) Name() string { return "onnxrec" }

// Recognize segments the image into text-line strips and runs the model
// over each, returning raw line fields with normalized boxes.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]ocr.Field, error) {
	gray := toGray(img)
	bands := segmentLines(gray)
	fields := make([]ocr.Field, 0, len(bands))
	for _, band := range bands {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		text, conf, err := r.recognizeStrip(gray, band)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		fields = append(fields, ocr.Field{
			Name:       ocr.RawLine,
			Value:      text,
			Confidence: conf,
			Box:        ocr.NormalizeBox(band.rect, gray.Bounds()),
			Source:     ocr.Source(r.Name()),
		})
	}
	return fields, nil
}

type lineBand struct {
	rect image.Rectangle
}

// segmentLines finds horizontal bands of dark pixels via row projection,
// then tightens each band's horizontal extent to its dark columns.
func segmentLines(gray *image.Gray) []lineBand {
	b := gray.Bounds()
	inLine := false
	top := 0
	var bands []lineBand
	flush := func(y0, y1 int) {
		x0, x1 := b.Max.X, b.Min.X
		for y := y0; y < y1; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if gray.GrayAt(x, y).Y < 128 {
					if x < x0 {
						x0 = x
					}
					if x+1 > x1 {
						x1 = x + 1
					}
				}
			}
		}
		if x1 > x0 && y1-y0 >= 4 {
			bands = append(bands, lineBand{rect: image.Rect(x0, y0, x1, y1)})
		}
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		dark := 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y < 128 {
				dark++
			}
		}
		if dark >= minDarkPerRow && !inLine {
			inLine = true
			top = y
		} else if dark < minDarkPerRow && inLine {
			inLine = false
			flush(top, y)
		}
	}
	if inLine {
		flush(top, b.Max.Y)
	}
	return bands
}

// recognizeStrip resamples one band into the model input, runs inference
// and greedy-decodes the CTC output.
func (r *Recognizer) recognizeStrip(gray *image.Gray, band lineBand) (string, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return "", 0, fmt.Errorf("recognizer is closed")
	}

	input := r.inputTensor.GetData()
	fillStrip(input, gray, band.rect)

	if err := r.session.Run(); err != nil {
		return "", 0, fmt.Errorf("run inference: %w", err)
	}
	return r.decodeCTC(r.outputTensor.GetData())
}

// fillStrip nearest-neighbour resamples the band into the lineHeight x
// lineWidth input plane, normalized to [0,1] with dark ink at 1.
func fillStrip(input []float32, gray *image.Gray, rect image.Rectangle) {
	for y := 0; y < lineHeight; y++ {
		sy := rect.Min.Y + y*rect.Dy()/lineHeight
		for x := 0; x < lineWidth; x++ {
			sx := rect.Min.X + x*rect.Dx()/lineWidth
			v := float32(0)
			if sx < rect.Max.X && sy < rect.Max.Y {
				v = 1 - float32(gray.GrayAt(sx, sy).Y)/255
			}
			input[y*lineWidth+x] = v
		}
	}
}

// decodeCTC performs greedy decoding: per-timestep argmax, collapse
// repeats, drop blanks. Confidence is the mean softmax peak over emitting
// timesteps.
func (r *Recognizer) decodeCTC(logits []float32) (string, float64, error) {
	if len(logits) < timesteps*r.numClasses {
		return "", 0, fmt.Errorf("short model output: %d values", len(logits))
	}
	var sb strings.Builder
	prev := -1
	var confSum float64
	emitted := 0
	for t := 0; t < timesteps; t++ {
		step := logits[t*r.numClasses : (t+1)*r.numClasses]
		best, prob := softmaxPeak(step)
		if best != 0 && best != prev {
			idx := best - 1
			if idx < len(r.charset) {
				sb.WriteRune(r.charset[idx])
				confSum += prob
				emitted++
			}
		}
		prev = best
	}
	if emitted == 0 {
		return "", 0, nil
	}
	return sb.String(), confSum / float64(emitted), nil
}

func softmaxPeak(logits []float32) (int, float64) {
	best := 0
	max := float64(math.Inf(-1))
	for i, l := range logits {
		if float64(l) > max {
			max = float64(l)
			best = i
		}
	}
	var sum float64
	for _, l := range logits {
		sum += math.Exp(float64(l) - max)
	}
	return best, 1 / sum
}

func loadCharset(path string) ([]rune, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load charset: %w", err)
	}
	var charset []rune
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		charset = append(charset, []rune(line)[0])
	}
	if len(charset) == 0 {
		return nil, fmt.Errorf("charset %s is empty", path)
	}
	return charset, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			luma := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257.0
			out.SetGray(x, y, color.Gray{Y: uint8(luma)})
		}
	}
	return out
}
