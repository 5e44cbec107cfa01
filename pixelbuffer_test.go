package pixelsort

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNewPixelBuffer(t *testing.T) {
	pb, err := NewPixelBuffer(3, 2)
	if err != nil {
		t.Fatalf("NewPixelBuffer() error = %v", err)
	}
	if pb.Len() != 24 || len(pb.Pix) != 24 {
		t.Errorf("Len() = %d, len(Pix) = %d, want 24", pb.Len(), len(pb.Pix))
	}
	if err := pb.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	for _, dims := range [][2]uint32{{0, 1}, {1, 0}} {
		if _, err := NewPixelBuffer(dims[0], dims[1]); !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("NewPixelBuffer(%d, %d) error = %v, want ErrInvalidDimensions", dims[0], dims[1], err)
		}
	}
}

func TestPixelBufferValidate(t *testing.T) {
	tests := []struct {
		name    string
		pb      PixelBuffer
		wantErr bool
	}{
		{"ok", PixelBuffer{Width: 2, Height: 1, Pix: make([]byte, 8)}, false},
		{"short", PixelBuffer{Width: 2, Height: 1, Pix: make([]byte, 7)}, true},
		{"long", PixelBuffer{Width: 2, Height: 1, Pix: make([]byte, 9)}, true},
		{"zero width", PixelBuffer{Width: 0, Height: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.pb.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	err := (&PixelBuffer{Width: 2, Height: 1, Pix: make([]byte, 7)}).Validate()
	var sm *SizeMismatchError
	if !errors.As(err, &sm) || sm.Expected != 8 || sm.Actual != 7 {
		t.Errorf("Validate() error = %v, want SizeMismatchError{8, 7}", err)
	}
}

func TestPixelBufferAtSet(t *testing.T) {
	pb, _ := NewPixelBuffer(2, 2)
	c := color.NRGBA{R: 10, G: 20, B: 30, A: 40}
	pb.Set(1, 1, c)
	pb.Set(5, 5, c)

	if got := pb.At(1, 1); got != c {
		t.Errorf("At(1, 1) = %v, want %v", got, c)
	}
	if got := pb.At(-1, 0); got != (color.NRGBA{}) {
		t.Errorf("At(-1, 0) = %v, want zero", got)
	}
	if pb.Pix[12] != 10 || pb.Pix[15] != 40 {
		t.Errorf("Pix = %v", pb.Pix)
	}
}

func TestPixelBufferImageRoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 9)
	}

	pb := FromImage(img)
	if pb.Width != 3 || pb.Height != 2 {
		t.Fatalf("FromImage() = %dx%d", pb.Width, pb.Height)
	}
	back := pb.ToImage()
	if back.Bounds() != img.Bounds() {
		t.Errorf("ToImage() bounds = %v", back.Bounds())
	}
	for i := range img.Pix {
		if back.Pix[i] != img.Pix[i] {
			t.Fatalf("byte %d = %d, want %d", i, back.Pix[i], img.Pix[i])
		}
	}

	back.Pix[0] = 255
	if pb.Pix[0] == 255 {
		t.Error("ToImage() shares memory with the buffer")
	}
}

func TestFromImageOffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 12, 11))
	img.Set(10, 10, color.RGBA{R: 255, A: 255})

	pb := FromImage(img)
	if pb.Width != 2 || pb.Height != 1 {
		t.Fatalf("FromImage() = %dx%d, want 2x1", pb.Width, pb.Height)
	}
	if got := pb.At(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("At(0, 0) = %v", got)
	}
}

func TestPixelBufferClone(t *testing.T) {
	pb, _ := NewPixelBuffer(1, 1)
	c := pb.Clone()
	c.Pix[0] = 1
	if pb.Pix[0] != 0 {
		t.Error("Clone() shares memory")
	}
}
