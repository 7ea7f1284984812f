// Package media stores uploaded images: logos and covers are decoded,
// scaled down and re-encoded as JPEG before they are written to disk.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/panelengine/slug"
)

const (
	jpegQuality = 80
	// MaxUploadSize is the largest accepted upload.
	MaxUploadSize = 10 << 20
)

// Kind says what an image is used for; it decides the maximum width.
type Kind string

const (
	KindLogo  Kind = "logo"
	KindCover Kind = "cover"
	KindPost  Kind = "post"
)

// Kinds lists the accepted kinds.
var Kinds = []Kind{KindLogo, KindCover, KindPost}

// MaxWidth is the width images of this kind are scaled down to.
func (k Kind) MaxWidth() int {
	switch k {
	case KindLogo:
		return 512
	case KindCover:
		return 1600
	default:
		return 800
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

var (
	ErrUnsupportedImage = errors.New("media: unsupported image format")
	ErrTooLarge         = errors.New("media: file too large (max 10MB)")
	ErrInvalidKind      = errors.New("media: unknown image kind")
	ErrNotFound         = errors.New("media: image not found")
)

// Image is the metadata of a stored image.
type Image struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Kind         Kind      `json:"kind"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Size         int       `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// URL is the public path of the image.
func (i Image) URL() string { return "/uploads/" + i.Filename }

// Process decodes an image from src, resizes it to maxWidth when wider,
// and encodes it as JPEG. The returned Image has no UploadedAt or Kind.
func Process(src io.Reader, originalName string, maxWidth int) (Image, []byte, error) {
	img, _, err := image.Decode(src)
	if errors.Is(err, image.ErrFormat) {
		return Image{}, nil, ErrUnsupportedImage
	}
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if maxWidth > 0 && w > maxWidth {
		newH := max(h*maxWidth/w, 1)
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return Image{
		Filename:     baseName(originalName) + ".jpg",
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
	}, buf.Bytes(), nil
}

// baseName converts a filename (without extension) to a URL-safe slug.
func baseName(name string) string {
	name = filepath.Base(name)
	base := slug.Make(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		return "image"
	}
	return base
}
