// Package imaging converts between runtime image payloads and the PNG/base64
// transport used by the HTTP API.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned when there are no image bytes to decode.
var ErrEmpty = errors.New("imaging: image data is empty")

var encoder = png.Encoder{CompressionLevel: png.BestCompression}

// Decode decodes PNG, JPEG or WebP bytes.
func Decode(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}

// DecodeBase64 decodes a base64 image payload, tolerating a data URL prefix.
func DecodeBase64(s string) (image.Image, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("imaging: base64: %w", err)
	}
	return Decode(b)
}

// EncodePNG encodes img losslessly with maximum compression. Output is
// deterministic for identical pixels.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, ErrEmpty
	}
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 returns the standard base64 encoding of the PNG bytes of img.
func EncodePNGBase64(img image.Image) (string, error) {
	b, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Fit returns img unchanged when it is already width x height, otherwise a
// Catmull-Rom resampled copy of exactly that size.
func Fit(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// IsBlank reports whether every pixel of img is pure black. Safety filters in
// diffusion runtimes replace flagged outputs with such an image.
func IsBlank(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r|g|bl != 0 {
				return false
			}
		}
	}
	return true
}
