// Package imaging probes uploaded images for their format and dimensions
// without decoding pixel data.
package imaging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register gif
	_ "image/jpeg" // register jpeg
	_ "image/png"  // register png
	"io"
	"slices"

	_ "golang.org/x/image/webp" // register webp

	"cropfit/internal/domain/geometry"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidImage      = errors.New("invalid image data")
	ErrTooLarge          = errors.New("image exceeds upload size limit")
)

// Info is what the inspector learns from an image header
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Bounds returns the box covering the whole image
func (i Info) Bounds() geometry.Box {
	return geometry.Bounds(i.Width, i.Height)
}

// Inspector reads image headers
type Inspector struct {
	maxSize int64
	formats []string
}

// NewInspector creates an inspector accepting the given formats ("jpeg",
// "png", "gif", "webp"). A maxSize of zero disables the size limit.
func NewInspector(maxSize int64, formats ...string) *Inspector {
	if len(formats) == 0 {
		formats = SupportedFormats()
	}
	return &Inspector{maxSize: maxSize, formats: formats}
}

// SupportedFormats returns every format the inspector can decode
func SupportedFormats() []string {
	return []string{"jpeg", "png", "gif", "webp"}
}

// Inspect decodes the image configuration from data
func (p *Inspector) Inspect(ctx context.Context, data io.Reader) (Info, error) {
	if data == nil {
		return Info{}, fmt.Errorf("%w: no data", ErrInvalidImage)
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	reader := data
	var limited *io.LimitedReader
	if p.maxSize > 0 {
		limited = &io.LimitedReader{R: data, N: p.maxSize + 1}
		reader = limited
	}
	buffered := bufio.NewReader(reader)

	config, format, err := image.DecodeConfig(buffered)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return Info{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if !slices.Contains(p.formats, format) {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return Info{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, config.Width, config.Height)
	}

	if limited != nil {
		// Oversized uploads fail even when their header fits the limit
		if _, err := io.Copy(io.Discard, buffered); err != nil {
			return Info{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		if limited.N <= 0 {
			return Info{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, p.maxSize)
		}
	}

	return Info{Width: config.Width, Height: config.Height, Format: format}, nil
}
