// Package textdetect finds text in a captured photo and groups the
// recognizer's line observations into paragraph-like blocks.
package textdetect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"lensd/pkg/types"
)

// DefaultMaxDimension caps the longest image side handed to the recognizer.
const DefaultMaxDimension = 2048

// ErrInvalidImage is returned for nil, empty or undecodable input.
var ErrInvalidImage = errors.New("invalid image")

// Line is one raw recognizer observation. Box is normalized with the origin
// at the bottom-left.
type Line struct {
	Text       string
	Box        types.Rect
	Confidence float64
}

// Recognizer runs on-device text recognition.
type Recognizer interface {
	// Recognize returns line observations for img. An empty langs slice
	// means automatic language detection.
	Recognize(ctx context.Context, img image.Image, langs []string) ([]Line, error)
	// SupportedLanguages lists BCP 47 tags the engine can be restricted to.
	SupportedLanguages() []string
}

// Options configures a Service.
type Options struct {
	Recognizer   Recognizer
	MaxDimension int
	Logger       zerolog.Logger
}

// Service detects and groups text blocks.
type Service struct {
	rec    Recognizer
	maxDim int
	langs  *languageSet
	log    zerolog.Logger
}

// New returns a Service. A nil recognizer yields StubRecognizer.
func New(opts Options) *Service {
	rec := opts.Recognizer
	if rec == nil {
		rec = StubRecognizer{}
	}
	maxDim := opts.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	return &Service{
		rec:    rec,
		maxDim: maxDim,
		langs:  newLanguageSet(rec.SupportedLanguages()),
		log:    opts.Logger.With().Str("component", "textdetect").Logger(),
	}
}

// Detect downsamples img, runs recognition and returns the grouped blocks in
// top-to-bottom order. langs is an optional allowlist; tags the engine does
// not support are dropped and an empty result falls back to auto-detection.
// Zero blocks is a valid result.
func (s *Service) Detect(ctx context.Context, img image.Image, langs []string) ([]types.TextBlock, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	small := Downsample(img, s.maxDim)
	hints := s.langs.intersect(langs)
	lines, err := s.rec.Recognize(ctx, small, hints)
	if err != nil {
		s.log.Error().Str("event", "recognize_error").Err(err).Send()
		return nil, fmt.Errorf("recognize: %w", err)
	}
	blocks := GroupLines(lines)
	s.log.Debug().Str("event", "detect_done").
		Int("lines", len(lines)).Int("blocks", len(blocks)).
		Strs("langs", hints).Dur("dur", time.Since(start)).Send()
	return blocks, nil
}

// DetectBytes decodes an encoded image (png, jpeg, gif, bmp, tiff) honoring
// its EXIF orientation, then calls Detect.
func (s *Service) DetectBytes(ctx context.Context, data []byte, langs []string) ([]types.TextBlock, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return s.Detect(ctx, img, langs)
}

// Downsample scales img so its longest side is at most maxDim, preserving
// aspect ratio. Images already within the cap are returned unchanged.
func Downsample(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// StubRecognizer finds no text. It keeps detection usable when no
// recognition engine is bundled.
type StubRecognizer struct{}

func (StubRecognizer) Recognize(ctx context.Context, _ image.Image, _ []string) ([]Line, error) {
	return nil, ctx.Err()
}

func (StubRecognizer) SupportedLanguages() []string {
	return []string{"en", "fr", "de", "es", "it", "pt", "ja", "ko", "zh-Hans", "zh-Hant"}
}
