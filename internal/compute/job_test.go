package compute_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gogpu/pixelsort/internal/compute"
	"github.com/gogpu/pixelsort/internal/compute/software"
	"github.com/gogpu/pixelsort/internal/kernels"
)

// countingDevice records pipeline creation. While hold is set, fences of
// submitted work do not signal until hold is closed.
type countingDevice struct {
	compute.Device
	pipelines atomic.Int32
	hold      chan struct{}
}

func (d *countingDevice) CreatePipeline(m compute.Module, entry string) (compute.Pipeline, error) {
	d.pipelines.Add(1)
	return d.Device.CreatePipeline(m, entry)
}

func (d *countingDevice) Submit(seq *compute.CommandSequence) (compute.Fence, error) {
	f, err := d.Device.Submit(seq)
	if err != nil || d.hold == nil {
		return f, err
	}
	return &heldFence{Fence: f, hold: d.hold}, nil
}

type heldFence struct {
	compute.Fence
	hold chan struct{}
}

func (f *heldFence) Wait(ctx context.Context) error {
	select {
	case <-f.hold:
	case <-ctx.Done():
		return ctx.Err()
	}
	return f.Fence.Wait(ctx)
}

type harness struct {
	dev     *countingDevice
	dc      *compute.DeviceContext
	queue   *compute.CommandQueue
	program *compute.KernelProgram
}

func newHarness(t *testing.T, tileWidth uint32, alignment uint32) *harness {
	t.Helper()
	sw := software.New(software.Options{Workers: 2, RowPitchAlignment: alignment})
	dev := &countingDevice{Device: sw}
	dc := compute.AcquireDevice(dev)

	program, err := compute.Compile(dc, kernels.Source, compute.CompileOptions{
		Label:   "test",
		Defines: map[string]uint32{compute.TileWidthConstant: tileWidth},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	t.Cleanup(func() {
		program.Release()
		dc.Close()
		sw.Destroy()
	})
	return &harness{dev: dev, dc: dc, queue: dc.NewQueue(), program: program}
}

func (h *harness) textures(t *testing.T, w, hgt uint32, pix []byte) (in, out *compute.TextureResource) {
	t.Helper()
	in, err := compute.CreateTexture(h.dc, "in", w, hgt, compute.TextureFormatRGBA8Unorm, compute.UsageKernelReadWrite)
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	if pix != nil {
		if err := in.Upload(pix); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
	}
	out, err = compute.CreateLike(in, "out")
	if err != nil {
		t.Fatalf("CreateLike() error = %v", err)
	}
	t.Cleanup(func() {
		in.Release()
		out.Release()
	})
	return in, out
}

func (h *harness) run(t *testing.T, entry string, w, hgt uint32, pix []byte, params compute.JobParams) ([]byte, *compute.ComputeJob) {
	t.Helper()
	p, err := h.program.EntryPoint(entry)
	if err != nil {
		t.Fatalf("EntryPoint(%q) error = %v", entry, err)
	}
	in, out := h.textures(t, w, hgt, pix)
	job := compute.NewJob(h.queue, p)
	defer job.Release()
	res, err := job.Run(context.Background(), in, out, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res, job
}

func pattern(w, h uint32) []byte {
	pix := make([]byte, int(w)*int(h)*4)
	for i := range pix {
		pix[i] = byte(i*31 + i/7)
	}
	return pix
}

func TestIdentityRoundTrip(t *testing.T) {
	sizes := []struct{ w, h uint32 }{
		{1, 1}, {3, 2}, {255, 1}, {256, 2}, {257, 3}, {1000, 1}, {33, 17},
	}
	for _, align := range []uint32{1, 256} {
		h := newHarness(t, 256, align)
		for _, sz := range sizes {
			pix := pattern(sz.w, sz.h)
			res, _ := h.run(t, kernels.EntryCopyRow, sz.w, sz.h, pix, compute.JobParams{})
			if !bytes.Equal(res, pix) {
				t.Errorf("align %d, %dx%d: copy_row did not round-trip", align, sz.w, sz.h)
			}
		}
	}
}

func TestReverseRow3x2(t *testing.T) {
	h := newHarness(t, 256, 1)
	pix := []byte{
		1, 1, 1, 255, 2, 2, 2, 255, 3, 3, 3, 255,
		4, 4, 4, 255, 5, 5, 5, 255, 6, 6, 6, 255,
	}
	want := []byte{
		3, 3, 3, 255, 2, 2, 2, 255, 1, 1, 1, 255,
		6, 6, 6, 255, 5, 5, 5, 255, 4, 4, 4, 255,
	}
	res, _ := h.run(t, kernels.EntryReverseRow, 3, 2, pix, compute.JobParams{})
	if !bytes.Equal(res, want) {
		t.Errorf("reverse_row = %v, want %v", res, want)
	}
}

func TestWideRowGeometry(t *testing.T) {
	h := newHarness(t, 256, 256)
	pix := pattern(1000, 1)
	res, job := h.run(t, kernels.EntryCopyRow, 1000, 1, pix, compute.JobParams{})

	plans := job.Plans()
	if len(plans) != 1 || plans[0].GroupCount.X != 4 {
		t.Fatalf("Plans() = %v, want one plan with 4 groups", plans)
	}
	if len(res) != 4000 {
		t.Errorf("len(readback) = %d, want 4000", len(res))
	}
	if !bytes.Equal(res, pix) {
		t.Error("columns past the first tile were not processed")
	}
}

func TestSortTile(t *testing.T) {
	const w, hgt, tw = 100, 3, 32
	h := newHarness(t, tw, 1)
	pix := pattern(w, hgt)

	for _, desc := range []bool{false, true} {
		res, _ := h.run(t, kernels.EntrySortTile, w, hgt, pix, compute.JobParams{Descending: desc})
		for y := 0; y < hgt; y++ {
			for start := 0; start < w; start += tw {
				end := min(start+tw, w)
				assertTileSorted(t, res, w, y, start, end, desc)
				assertSameTexels(t, pix, res, w, y, start, end)
			}
		}
	}
}

func TestMultiPassReverseIsIdentity(t *testing.T) {
	h := newHarness(t, 64, 1)
	pix := pattern(130, 4)
	res, job := h.run(t, kernels.EntryReverseRow, 130, 4, pix, compute.JobParams{Passes: 2})

	plans := job.Plans()
	if len(plans) != 2 || plans[1].Offset != 32 {
		t.Fatalf("Plans() = %v, want second pass offset by 32", plans)
	}
	if !bytes.Equal(res, pix) {
		t.Error("two reverse passes did not restore the input")
	}
}

func TestMultiPassSortMergesTiles(t *testing.T) {
	// Tiles of 4 over a single row; staggered passes let dark texels drift
	// left across tile boundaries.
	const w = 16
	h := newHarness(t, 4, 1)
	pix := make([]byte, w*4)
	for x := 0; x < w; x++ {
		v := byte(255 - x*16)
		copy(pix[x*4:], []byte{v, v, v, 255})
	}

	// One pass leaves 207 in front (the darkest of the first tile); the
	// staggered second pass carries 143 over the boundary.
	res, _ := h.run(t, kernels.EntrySortTile, w, 1, pix, compute.JobParams{Passes: 3})
	if res[0] != 143 {
		t.Errorf("first texel = %d after three passes, want 143", res[0])
	}
	assertSameTexels(t, pix, res, w, 0, 0, w)
}

func TestEntryPointNotFound(t *testing.T) {
	h := newHarness(t, 256, 1)
	before := h.dc.MemoryStats().Allocations

	_, err := h.program.EntryPoint("no_such_entry")
	var nf *compute.EntryPointNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("EntryPoint() error = %v, want EntryPointNotFoundError", err)
	}
	if nf.Name != "no_such_entry" || len(nf.Available) != 3 {
		t.Errorf("error = %+v", nf)
	}
	if n := h.dev.pipelines.Load(); n != 0 {
		t.Errorf("CreatePipeline called %d times", n)
	}
	if after := h.dc.MemoryStats().Allocations; after != before {
		t.Errorf("allocations %d -> %d", before, after)
	}
}

func TestEntryPointCached(t *testing.T) {
	h := newHarness(t, 256, 1)
	a, err := h.program.EntryPoint(kernels.EntryCopyRow)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.program.EntryPoint(kernels.EntryCopyRow)
	if a != b || h.dev.pipelines.Load() != 1 {
		t.Error("pipeline was created twice")
	}
}

func TestCompileError(t *testing.T) {
	h := newHarness(t, 256, 1)
	_, err := compute.Compile(h.dc, "fn broken( {", compute.CompileOptions{Label: "broken"})
	var ce *compute.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("Compile() error = %v, want CompileError", err)
	}
	if len(ce.Diagnostics) == 0 {
		t.Error("CompileError carries no diagnostics")
	}
}

func TestCompileEntryPoints(t *testing.T) {
	h := newHarness(t, 128, 1)
	got := h.program.EntryPoints()
	for _, want := range []string{kernels.EntrySortTile, kernels.EntryReverseRow, kernels.EntryCopyRow} {
		found := false
		for _, n := range got {
			found = found || n == want
		}
		if !found {
			t.Errorf("EntryPoints() = %v, missing %q", got, want)
		}
	}
	if tw, ok := h.program.TileWidth(); !ok || tw != 128 {
		t.Errorf("TileWidth() = %d, %v", tw, ok)
	}
}

func TestUploadSizeMismatch(t *testing.T) {
	h := newHarness(t, 256, 1)
	in, _ := h.textures(t, 4, 4, nil)

	for _, n := range []int{0, 63, 65} {
		err := in.Upload(make([]byte, n))
		var sm *compute.SizeMismatchError
		if !errors.As(err, &sm) || sm.Expected != 64 || sm.Actual != n {
			t.Errorf("Upload(%d bytes) error = %v, want SizeMismatchError", n, err)
		}
	}
}

func TestCreateTextureErrors(t *testing.T) {
	h := newHarness(t, 256, 1)

	_, err := compute.CreateTexture(h.dc, "bgra", 2, 2, compute.TextureFormatBGRA8Unorm, compute.UsageKernelReadWrite)
	var fm *compute.FormatMismatchError
	if !errors.As(err, &fm) || fm.Actual != compute.TextureFormatBGRA8Unorm {
		t.Errorf("CreateTexture(BGRA) error = %v, want FormatMismatchError", err)
	}

	_, err = compute.CreateTexture(h.dc, "empty", 0, 2, compute.TextureFormatRGBA8Unorm, compute.UsageKernelReadWrite)
	if !errors.Is(err, compute.ErrInvalidDimensions) {
		t.Errorf("CreateTexture(0x2) error = %v, want ErrInvalidDimensions", err)
	}
}

func TestBindSizeMismatch(t *testing.T) {
	h := newHarness(t, 256, 1)
	p, _ := h.program.EntryPoint(kernels.EntryCopyRow)
	in, _ := h.textures(t, 4, 4, nil)
	other, err := compute.CreateTexture(h.dc, "other", 4, 5, compute.TextureFormatRGBA8Unorm, compute.UsageKernelReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer other.Release()

	job := compute.NewJob(h.queue, p)
	err = job.Bind(in, other, compute.JobParams{})
	var sm *compute.SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("Bind() error = %v, want SizeMismatchError", err)
	}
	if job.State() != compute.JobFailed {
		t.Errorf("State() = %s, want Failed", job.State())
	}
}

func TestJobStateMachine(t *testing.T) {
	h := newHarness(t, 256, 1)
	p, _ := h.program.EntryPoint(kernels.EntryCopyRow)

	tests := []struct {
		name string
		op   func(j *compute.ComputeJob) error
	}{
		{"encode before bind", func(j *compute.ComputeJob) error { return j.Encode() }},
		{"submit before encode", func(j *compute.ComputeJob) error { _, err := j.Submit(); return err }},
		{"wait before submit", func(j *compute.ComputeJob) error { return j.Wait(context.Background()) }},
		{"readback before wait", func(j *compute.ComputeJob) error { _, err := j.Readback(); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := compute.NewJob(h.queue, p)
			err := tt.op(job)
			var se *compute.StateError
			if !errors.As(err, &se) || se.State != compute.JobIdle {
				t.Fatalf("error = %v, want StateError in Idle", err)
			}
			if job.State() != compute.JobFailed {
				t.Errorf("State() = %s, want Failed", job.State())
			}
			in, out := h.textures(t, 2, 2, nil)
			if err := job.Bind(in, out, compute.JobParams{}); !errors.As(err, &se) {
				t.Errorf("Bind() after failure error = %v, want StateError", err)
			}
		})
	}
}

func TestJobStagesAndRepeatedReadback(t *testing.T) {
	h := newHarness(t, 256, 1)
	p, _ := h.program.EntryPoint(kernels.EntryCopyRow)
	pix := pattern(5, 3)
	in, out := h.textures(t, 5, 3, pix)

	job := compute.NewJob(h.queue, p)
	defer job.Release()

	steps := []struct {
		run  func() error
		want compute.JobState
	}{
		{func() error { return job.Bind(in, out, compute.JobParams{}) }, compute.JobBound},
		{job.Encode, compute.JobEncoded},
		{func() error { _, err := job.Submit(); return err }, compute.JobSubmitted},
		{func() error { return job.Wait(context.Background()) }, compute.JobCompleted},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("step to %s: %v", s.want, err)
		}
		if job.State() != s.want {
			t.Fatalf("State() = %s, want %s", job.State(), s.want)
		}
	}

	first, err := job.Readback()
	if err != nil {
		t.Fatal(err)
	}
	second, err := job.Readback()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, pix) || !bytes.Equal(second, pix) {
		t.Error("readback differs from input")
	}
	if got := h.dc.MemoryStats().Buffers; got != 0 {
		t.Errorf("staging buffers alive after readback: %d", got)
	}
}

func TestWaitCancelled(t *testing.T) {
	h := newHarness(t, 256, 1)
	p, _ := h.program.EntryPoint(kernels.EntryCopyRow)
	in, out := h.textures(t, 8, 8, pattern(8, 8))

	job := compute.NewJob(h.queue, p)
	if err := job.Bind(in, out, compute.JobParams{}); err != nil {
		t.Fatal(err)
	}
	if err := job.Encode(); err != nil {
		t.Fatal(err)
	}

	h.dev.hold = make(chan struct{})
	if _, err := job.Submit(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := job.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
	if job.State() != compute.JobFailed {
		t.Errorf("State() = %s, want Failed", job.State())
	}
	if _, err := job.Readback(); err == nil {
		t.Error("Readback() after a cancelled wait succeeded")
	}

	close(h.dev.hold)
	job.Release()
	if got := h.dc.MemoryStats().Buffers; got != 0 {
		t.Errorf("staging buffers alive after Release: %d", got)
	}
}

func TestReadTexturePadded(t *testing.T) {
	h := newHarness(t, 256, 256)
	pix := pattern(3, 5)
	in, _ := h.textures(t, 3, 5, pix)

	got, err := compute.ReadTexture(context.Background(), h.queue, in)
	if err != nil {
		t.Fatalf("ReadTexture() error = %v", err)
	}
	if !bytes.Equal(got, pix) {
		t.Error("ReadTexture() did not strip row padding")
	}
}

func TestReleasedTexture(t *testing.T) {
	h := newHarness(t, 256, 1)
	in, _ := h.textures(t, 2, 2, nil)
	in.Release()
	in.Release()

	if err := in.Upload(make([]byte, 16)); !errors.Is(err, compute.ErrResourceReleased) {
		t.Errorf("Upload() after Release error = %v", err)
	}
	if _, err := compute.ReadTexture(context.Background(), h.queue, in); !errors.Is(err, compute.ErrResourceReleased) {
		t.Errorf("ReadTexture() after Release error = %v", err)
	}
}

func assertTileSorted(t *testing.T, pix []byte, w, y, start, end int, desc bool) {
	t.Helper()
	row := pix[y*w*4:]
	for x := start + 1; x < end; x++ {
		a, b := kernels.Luminance(row[(x-1)*4:]), kernels.Luminance(row[x*4:])
		if (!desc && a > b) || (desc && a < b) {
			t.Fatalf("row %d tile [%d,%d) not sorted at %d: %v then %v", y, start, end, x, a, b)
		}
	}
}

func assertSameTexels(t *testing.T, a, b []byte, w, y, start, end int) {
	t.Helper()
	count := map[[4]byte]int{}
	for x := start; x < end; x++ {
		var px [4]byte
		copy(px[:], a[(y*w+x)*4:])
		count[px]++
		copy(px[:], b[(y*w+x)*4:])
		count[px]--
	}
	for px, n := range count {
		if n != 0 {
			t.Fatalf("row %d tile [%d,%d): texel %v count differs by %d", y, start, end, px, n)
		}
	}
}
