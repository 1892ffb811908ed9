// Package testutils holds fixtures shared by package tests
package testutils

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"cropfit/internal/domain/sizes"
)

// EncodeImage renders a w x h gradient in the given format (jpeg, png or gif)
func EncodeImage(t testing.TB, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		t.Fatalf("unsupported fixture format %q", format)
	}
	if err != nil {
		t.Fatalf("encode %s fixture: %v", format, err)
	}
	return buf.Bytes()
}

// GallerySizes is a small size tree used across service tests: a 4:3 main
// size with two auto crops, a width-only banner and an optional poster.
func GallerySizes() []sizes.Size {
	required := false
	return []sizes.Size{
		sizes.MustNew(sizes.Definition{Name: "main", Width: 800, Height: 600, Auto: []sizes.Definition{
			{Name: "main_square", Width: 200, Height: 200},
			{Name: "main_wide", Width: 320, Height: 180},
		}}),
		sizes.MustNew(sizes.Definition{Name: "banner", Width: 600, MinHeight: 100}),
		sizes.MustNew(sizes.Definition{Name: "poster", Width: 4000, Height: 3000, Required: &required}),
	}
}

// GalleryRegistry wraps GallerySizes in a registry with a single "gallery" group
func GalleryRegistry(t testing.TB) *sizes.Registry {
	t.Helper()
	group, err := sizes.NewGroup("gallery", false, GallerySizes())
	if err != nil {
		t.Fatalf("gallery group: %v", err)
	}
	registry, err := sizes.NewRegistry(group)
	if err != nil {
		t.Fatalf("gallery registry: %v", err)
	}
	return registry
}

// WriteSizesFile stores the gallery group as a sizes document in a temporary
// directory and returns its path
func WriteSizesFile(t testing.TB) string {
	t.Helper()
	group, err := sizes.NewGroup("gallery", false, GallerySizes())
	if err != nil {
		t.Fatalf("gallery group: %v", err)
	}
	data, err := json.Marshal(map[string]any{"groups": []*sizes.Group{group}})
	if err != nil {
		t.Fatalf("encode sizes document: %v", err)
	}
	path := filepath.Join(t.TempDir(), "sizes.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write sizes document: %v", err)
	}
	return path
}

// WebPHeader returns a lossless WebP stream carrying only a w x h header,
// enough for a config decode
func WebPHeader(w, h int) []byte {
	bits := uint32(w-1) | uint32(h-1)<<14
	chunk := []byte{0x2f, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(chunk[1:5], bits)

	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(4+8+len(chunk)))
	out = append(out, "WEBPVP8L"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(chunk)))
	return append(out, chunk...)
}
