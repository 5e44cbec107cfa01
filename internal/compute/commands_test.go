package compute

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParamsBytes(t *testing.T) {
	p := Params{Width: 1000, Height: 2, Offset: 128, Flags: FlagDescending}
	want := []byte{
		0xE8, 0x03, 0, 0,
		2, 0, 0, 0,
		128, 0, 0, 0,
		1, 0, 0, 0,
	}
	if got := p.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
}

func TestCommandSequence(t *testing.T) {
	var seq CommandSequence
	seq.Dispatch(DispatchCommand{Label: "a"})
	seq.Dispatch(DispatchCommand{Label: "b"})
	seq.Copy(CopyCommand{Width: 1, Height: 1, BytesPerRow: 4})

	if len(seq.Commands) != 3 || seq.Dispatches() != 2 {
		t.Errorf("commands = %d, dispatches = %d", len(seq.Commands), seq.Dispatches())
	}
	if _, ok := seq.Commands[2].(*CopyCommand); !ok {
		t.Errorf("last command is %T, want *CopyCommand", seq.Commands[2])
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NoDeviceError{}, "no compute-capable device"},
		{&NoDeviceError{Tried: []string{"vulkan"}, Err: errors.New("boom")}, "tried vulkan"},
		{&CompileError{Label: "k", Diagnostics: []string{"line 3: expected ;"}}, "line 3: expected ;"},
		{&EntryPointNotFoundError{Name: "main", Available: []string{"sort_tile"}}, `"main" not found (have sort_tile)`},
		{&SizeMismatchError{What: "readback", Expected: 24, Actual: 20}, "expected 24, got 20"},
		{&FormatMismatchError{Expected: TextureFormatRGBA8Unorm, Actual: TextureFormatR8Unorm}, "got R8Unorm"},
		{&StateError{Op: "encode", State: JobIdle}, "encode not allowed in state Idle"},
		{&DeviceError{Op: "submit", Err: errors.New("lost")}, "device submit: lost"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); !strings.Contains(got, tt.want) {
			t.Errorf("Error() = %q, want it to contain %q", got, tt.want)
		}
	}
}

func TestTextureUsageString(t *testing.T) {
	if got := UsageKernelReadWrite.String(); got != "KernelRead|KernelWrite|CopySrc|CopyDst" {
		t.Errorf("String() = %q", got)
	}
	if got := TextureUsage(0).String(); got != "None" {
		t.Errorf("String() = %q", got)
	}
	if !UsageKernelReadWrite.Has(UsageCopySrc | UsageKernelRead) {
		t.Error("Has() = false")
	}
}

func TestPreamble(t *testing.T) {
	got := Preamble(map[string]uint32{"TILE_WIDTH": 256, "A": 1})
	want := "const A: u32 = 1u;\nconst TILE_WIDTH: u32 = 256u;\n"
	if got != want {
		t.Errorf("Preamble() = %q, want %q", got, want)
	}
}
