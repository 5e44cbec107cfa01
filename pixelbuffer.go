package pixelsort

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PixelBuffer is an in-memory RGBA8 image: Width*Height pixels, four
// bytes each (non-premultiplied R, G, B, A), row-major without padding.
type PixelBuffer struct {
	Width  uint32
	Height uint32
	Pix    []byte
}

// NewPixelBuffer creates a transparent black buffer.
func NewPixelBuffer(width, height uint32) (*PixelBuffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: pixel buffer %dx%d", ErrInvalidDimensions, width, height)
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, int(width)*int(height)*4),
	}, nil
}

// FromImage converts any image into a PixelBuffer.
func FromImage(img image.Image) *PixelBuffer {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return &PixelBuffer{
		Width:  uint32(b.Dx()), //nolint:gosec // image bounds are non-negative
		Height: uint32(b.Dy()), //nolint:gosec // image bounds are non-negative
		Pix:    nrgba.Pix,
	}
}

// ToImage returns an *image.NRGBA sharing no memory with the buffer.
func (pb *PixelBuffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, int(pb.Width), int(pb.Height)))
	copy(img.Pix, pb.Pix)
	return img
}

// Len returns the expected byte length, Width*Height*4.
func (pb *PixelBuffer) Len() int {
	return int(pb.Width) * int(pb.Height) * 4
}

// Validate checks the dimensions against the pixel data.
func (pb *PixelBuffer) Validate() error {
	if pb.Width == 0 || pb.Height == 0 {
		return fmt.Errorf("%w: pixel buffer %dx%d", ErrInvalidDimensions, pb.Width, pb.Height)
	}
	if len(pb.Pix) != pb.Len() {
		return &SizeMismatchError{What: "pixel buffer", Expected: pb.Len(), Actual: len(pb.Pix)}
	}
	return nil
}

// Clone returns a deep copy.
func (pb *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]byte, len(pb.Pix))
	copy(pix, pb.Pix)
	return &PixelBuffer{Width: pb.Width, Height: pb.Height, Pix: pix}
}

// At returns the pixel at (x, y). Out-of-range coordinates return
// transparent black.
func (pb *PixelBuffer) At(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= int(pb.Width) || y >= int(pb.Height) {
		return color.NRGBA{}
	}
	i := (y*int(pb.Width) + x) * 4
	return color.NRGBA{R: pb.Pix[i], G: pb.Pix[i+1], B: pb.Pix[i+2], A: pb.Pix[i+3]}
}

// Set sets the pixel at (x, y). Out-of-range coordinates are ignored.
func (pb *PixelBuffer) Set(x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= int(pb.Width) || y >= int(pb.Height) {
		return
	}
	i := (y*int(pb.Width) + x) * 4
	pb.Pix[i], pb.Pix[i+1], pb.Pix[i+2], pb.Pix[i+3] = c.R, c.G, c.B, c.A
}
