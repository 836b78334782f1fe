// Package thumb builds small JPEG previews for photo attachments.
package thumb

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
)

// MaxSide bounds the longer edge of a thumbnail in pixels.
const MaxSide = 200

// Quality is the JPEG quality used for thumbnails.
const Quality = 70

// MaxPixels caps the decoded size of a source image.
const MaxPixels = 50_000_000

var (
	// ErrNotImage is returned for data URLs whose media type is not an image.
	ErrNotImage = errors.New("thumb: not an image")
	// ErrTooLarge is returned for images whose header declares more than
	// MaxPixels pixels.
	ErrTooLarge = errors.New("thumb: image too large")
)

// DataURL is a decoded "data:<mime>;base64,<payload>" string.
type DataURL struct {
	MimeType string
	Data     []byte
}

// ParseDataURL decodes a base64 data URL. A bare base64 payload is accepted
// with an empty media type.
func ParseDataURL(s string) (DataURL, error) {
	payload := s
	var mime string
	if strings.HasPrefix(s, "data:") {
		head, rest, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return DataURL{}, fmt.Errorf("thumb: malformed data url")
		}
		if !strings.HasSuffix(head, ";base64") {
			return DataURL{}, fmt.Errorf("thumb: data url is not base64 encoded")
		}
		mime = strings.TrimSuffix(head, ";base64")
		payload = rest
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return DataURL{}, fmt.Errorf("thumb: decode base64: %w", err)
	}
	return DataURL{MimeType: mime, Data: data}, nil
}

// FromDataURL decodes an image data URL and returns a JPEG thumbnail as a
// data URL whose longer side is at most MaxSide.
func FromDataURL(s string) (string, error) {
	d, err := ParseDataURL(s)
	if err != nil {
		return "", err
	}
	if d.MimeType != "" && !strings.HasPrefix(d.MimeType, "image/") {
		return "", ErrNotImage
	}
	out, err := Make(d.Data)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out), nil
}

// Make decodes a JPEG, PNG or GIF image and encodes a scaled-down JPEG.
// The header is checked against MaxPixels before any pixel data is read.
func Make(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	dst := Scale(src, MaxSide)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("thumb: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Scale fits src into a maxSide square with bilinear sampling, keeping the
// aspect ratio. Images that already fit are copied unscaled. Transparent
// areas are flattened onto white.
func Scale(src image.Image, maxSide int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	tw, th := w, h
	if w > maxSide || h > maxSide {
		if w >= h {
			tw, th = maxSide, max(1, h*maxSide/w)
		} else {
			tw, th = max(1, w*maxSide/h), maxSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if tw == w && th == h {
		draw.Copy(dst, image.Point{}, src, b, draw.Over, nil)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
