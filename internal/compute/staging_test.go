package compute

import (
	"bytes"
	"errors"
	"testing"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uint32
	}{
		{12, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{12, 1, 12},
		{12, 0, 12},
		{4000, 4, 4000},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestDepadTight(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	out, err := depad(raw, 1, 2, 4)
	if err != nil {
		t.Fatalf("depad() error = %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Errorf("depad() = %v, want %v", out, raw)
	}
	out[0] = 99
	if raw[0] == 99 {
		t.Error("depad() result aliases its input")
	}
}

func TestDepadStripsRowPadding(t *testing.T) {
	// 2x2 texels, pitch 12: every row carries four padding bytes.
	raw := []byte{
		1, 1, 1, 1, 2, 2, 2, 2, 0xEE, 0xEE, 0xEE, 0xEE,
		3, 3, 3, 3, 4, 4, 4, 4, 0xEE, 0xEE, 0xEE, 0xEE,
	}
	want := []byte{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}

	out, err := depad(raw, 2, 2, 12)
	if err != nil {
		t.Fatalf("depad() error = %v", err)
	}
	if !bytes.Equal(out, want) {
		t.Errorf("depad() = %v, want %v", out, want)
	}
}

func TestDepadLastRowNeedsNoPadding(t *testing.T) {
	raw := make([]byte, 12+8)
	out, err := depad(raw, 2, 2, 12)
	if err != nil {
		t.Fatalf("depad() error = %v", err)
	}
	if len(out) != 16 {
		t.Errorf("len = %d, want 16", len(out))
	}
}

func TestDepadShortInput(t *testing.T) {
	var sm *SizeMismatchError

	_, err := depad(make([]byte, 15), 2, 2, 8)
	if !errors.As(err, &sm) {
		t.Fatalf("depad() error = %v, want SizeMismatchError", err)
	}
	if sm.Expected != 16 || sm.Actual != 15 {
		t.Errorf("SizeMismatchError = %+v", sm)
	}

	_, err = depad(make([]byte, 64), 4, 1, 8)
	if !errors.As(err, &sm) {
		t.Errorf("pitch below row size: error = %v, want SizeMismatchError", err)
	}
}
