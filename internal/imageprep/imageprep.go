// Package imageprep turns uploaded image bytes into the NHWC float32 batch
// expected by every pest classifier.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

// MaxPixels caps the decoded image area to refuse decompression bombs.
const MaxPixels = 89_478_485

var (
	// ErrEmptyImage is returned for a zero-length upload.
	ErrEmptyImage = errors.NewStd("empty image data")
	// ErrDecode is returned when the bytes are not a supported image.
	ErrDecode = errors.NewStd("cannot decode image")
)

// Preprocess decodes data, drops any alpha channel, resizes to 224x224
// ignoring aspect ratio and scales channels to [0, 1]. The result has shape
// [1, 224, 224, 3].
func Preprocess(data []byte) (*tensor.Dense, error) {
	if len(data) == 0 {
		return nil, newError(ErrEmptyImage, "")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, newError(fmt.Errorf("%w: %w", ErrDecode, err), "")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, newError(ErrEmptyImage, format)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, newError(fmt.Errorf("image is %dx%d, exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels), format)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, newError(fmt.Errorf("%w: %w", ErrDecode, err), format)
	}

	resized := resize.Resize(pestnet.InputWidth, pestnet.InputHeight, opaque(img), resize.Bilinear)
	return toTensor(resized), nil
}

// opaque converts img to non-premultiplied RGBA and forces full alpha, so
// colour channels keep their stored values the way an RGB conversion would.
func opaque(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		for y := range b.Dy() {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	} else {
		// Set converts through color.NRGBAModel, which keeps NRGBA colours intact.
		for y := range b.Dy() {
			for x := range b.Dx() {
				dst.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func toTensor(img image.Image) *tensor.Dense {
	const c = pestnet.InputChannels
	w, h := pestnet.InputWidth, pestnet.InputHeight
	data := make([]float32, h*w*c)
	b := img.Bounds()

	if rgba, ok := img.(*image.RGBA); ok {
		for y := range h {
			row := rgba.Pix[y*rgba.Stride:]
			for x := range w {
				o := (y*w + x) * c
				data[o] = float32(row[x*4]) / 255
				data[o+1] = float32(row[x*4+1]) / 255
				data[o+2] = float32(row[x*4+2]) / 255
			}
		}
	} else {
		for y := range h {
			for x := range w {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				o := (y*w + x) * c
				data[o] = float32(r>>8) / 255
				data[o+1] = float32(g>>8) / 255
				data[o+2] = float32(bl>>8) / 255
			}
		}
	}
	return tensor.New(tensor.WithShape(1, h, w, c), tensor.WithBacking(data))
}

func newError(err error, format string) error {
	b := errors.New(err).
		Component("imageprep").
		Category(errors.CategoryImageProcessing)
	if format != "" {
		b = b.Context("format", format)
	}
	return b.Build()
}
