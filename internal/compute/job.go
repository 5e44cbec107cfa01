// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"context"
	"errors"
	"fmt"
)

// JobState is the lifecycle state of a ComputeJob.
type JobState uint8

const (
	JobIdle JobState = iota
	JobBound
	JobEncoded
	JobSubmitted
	JobCompleted
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobIdle:
		return "Idle"
	case JobBound:
		return "Bound"
	case JobEncoded:
		return "Encoded"
	case JobSubmitted:
		return "Submitted"
	case JobCompleted:
		return "Completed"
	case JobFailed:
		return "Failed"
	default:
		return fmt.Sprintf("JobState(%d)", s)
	}
}

// JobParams are the scalar inputs of a job.
type JobParams struct {
	// Passes is the number of dispatches; 0 means 1. Passes alternate
	// between the two bound textures, and odd passes shift tile
	// boundaries by half a tile so neighbouring tiles get merged.
	Passes int

	// Descending sets FlagDescending in the kernel params.
	Descending bool
}

// ComputeJob is one run of a kernel entry point over a bound pair of
// textures: Bind, Encode, Submit, Wait, Readback, in that order. Any
// failure moves the job to JobFailed, which is terminal.
//
// A ComputeJob is not safe for concurrent use.
type ComputeJob struct {
	queue    *CommandQueue
	pipeline *KernelPipeline
	state    JobState
	err      error

	in, out *TextureResource
	final   *TextureResource
	params  JobParams
	plans   []Geometry

	seq        *CommandSequence
	staging    *StagingBuffer
	completion *Completion
	result     []byte
}

// NewJob creates an idle job running pipeline on queue.
func NewJob(queue *CommandQueue, pipeline *KernelPipeline) *ComputeJob {
	return &ComputeJob{queue: queue, pipeline: pipeline}
}

// State returns the current state.
func (j *ComputeJob) State() JobState { return j.state }

// Err returns the failure cause once the job is JobFailed.
func (j *ComputeJob) Err() error { return j.err }

// Plans returns the dispatch geometry of each pass once bound.
func (j *ComputeJob) Plans() []Geometry { return j.plans }

func (j *ComputeJob) fail(err error) error {
	j.state = JobFailed
	j.err = err
	slogger().Debug("compute: job failed", "err", err)
	return err
}

func (j *ComputeJob) expect(op string, want JobState) error {
	if j.state == want {
		return nil
	}
	if j.state == JobFailed {
		return &StateError{Op: op, State: JobFailed}
	}
	return j.fail(&StateError{Op: op, State: j.state})
}

// Bind attaches the input and output textures and the scalar params.
// Both textures must be RGBA8Unorm of identical size, created on the
// queue's device. Nothing is recorded yet.
func (j *ComputeJob) Bind(in, out *TextureResource, params JobParams) error {
	if err := j.expect("bind", JobIdle); err != nil {
		return err
	}
	if in == nil || out == nil {
		return j.fail(errors.New("compute: bind: nil texture"))
	}
	for _, t := range []*TextureResource{in, out} {
		if t.Format() != TextureFormatRGBA8Unorm {
			return j.fail(&FormatMismatchError{Expected: TextureFormatRGBA8Unorm, Actual: t.Format()})
		}
		if !t.Usage().Has(UsageKernelRead | UsageKernelWrite) {
			return j.fail(fmt.Errorf("compute: bind %q: kernel read/write usage required, have %s", t.Label(), t.Usage()))
		}
	}
	if in.Width() != out.Width() {
		return j.fail(&SizeMismatchError{What: "output width", Expected: int(in.Width()), Actual: int(out.Width())})
	}
	if in.Height() != out.Height() {
		return j.fail(&SizeMismatchError{What: "output height", Expected: int(in.Height()), Actual: int(out.Height())})
	}
	if in == out {
		return j.fail(errors.New("compute: bind: input and output must be distinct textures"))
	}

	tw, ok := j.pipeline.program.TileWidth()
	if !ok {
		return j.fail(fmt.Errorf("compute: bind: kernel %q compiled without %s", j.pipeline.program.Label(), TileWidthConstant))
	}
	if params.Passes <= 0 {
		params.Passes = 1
	}

	plans := make([]Geometry, params.Passes)
	for i := range plans {
		var offset uint32
		if i%2 == 1 {
			offset = tw / 2
		}
		g, err := PlanOffset(in.Width(), in.Height(), tw, offset)
		if err != nil {
			return j.fail(err)
		}
		plans[i] = g
	}

	j.in, j.out, j.params, j.plans = in, out, params, plans
	j.state = JobBound
	return nil
}

// Encode records one dispatch per pass followed by a copy of the last
// written texture into a fresh staging buffer.
func (j *ComputeJob) Encode() error {
	if err := j.expect("encode", JobBound); err != nil {
		return err
	}

	dc := j.queue.dc
	inS, err := j.in.handle(dc)
	if err != nil {
		return j.fail(err)
	}
	outS, err := j.out.handle(dc)
	if err != nil {
		return j.fail(err)
	}

	flags := uint32(0)
	if j.params.Descending {
		flags |= FlagDescending
	}

	seq := &CommandSequence{Label: j.pipeline.Name()}
	src, dst := inS, outS
	final := j.out
	for i, g := range j.plans {
		seq.Dispatch(DispatchCommand{
			Label:    fmt.Sprintf("%s pass %d", j.pipeline.Name(), i),
			Pipeline: j.pipeline.handle,
			Src:      src,
			Dst:      dst,
			Params:   Params{Width: j.in.Width(), Height: j.in.Height(), Offset: g.Offset, Flags: flags},
			Geometry: g,
		})
		slogger().Debug("compute: dispatch recorded", "pass", i, "geometry", g.String())
		src, dst = dst, src
		if i%2 == 0 {
			final = j.out
		} else {
			final = j.in
		}
	}

	staging, err := newStagingBuffer(dc, "readback", final.Width(), final.Height())
	if err != nil {
		return j.fail(err)
	}
	seq.Copy(CopyCommand{
		Src:         src,
		Dst:         staging.buf,
		Width:       final.Width(),
		Height:      final.Height(),
		BytesPerRow: staging.RowPitch(),
	})

	j.seq, j.staging, j.final = seq, staging, final
	j.state = JobEncoded
	return nil
}

// Submit hands the recorded sequence to the queue and returns at once.
func (j *ComputeJob) Submit() (*Completion, error) {
	if err := j.expect("submit", JobEncoded); err != nil {
		return nil, err
	}
	c, err := j.queue.Submit(j.seq)
	if err != nil {
		return nil, j.fail(err)
	}
	j.completion = c
	j.state = JobSubmitted
	return c, nil
}

// Wait blocks until the device has finished the job or ctx is done.
// A cancelled wait fails the job; the device work itself keeps running
// and Release waits for it before freeing anything.
func (j *ComputeJob) Wait(ctx context.Context) error {
	if err := j.expect("wait", JobSubmitted); err != nil {
		return err
	}
	if err := j.completion.Wait(ctx); err != nil {
		return j.fail(err)
	}
	j.state = JobCompleted
	return nil
}

// Readback extracts the final texture contents: width*height*4 bytes,
// row-major, no padding. The staging buffer is released afterwards;
// later calls return the same bytes.
func (j *ComputeJob) Readback() ([]byte, error) {
	if err := j.expect("readback", JobCompleted); err != nil {
		return nil, err
	}
	if j.result != nil {
		return j.result, nil
	}

	pix, err := j.staging.Extract()
	j.staging = nil
	if err != nil {
		return nil, j.fail(err)
	}
	if want := j.final.ByteSize(); len(pix) != want {
		return nil, j.fail(&SizeMismatchError{What: "readback", Expected: want, Actual: len(pix)})
	}
	j.result = pix
	return pix, nil
}

// Run drives an idle job through every stage and returns the readback.
func (j *ComputeJob) Run(ctx context.Context, in, out *TextureResource, params JobParams) ([]byte, error) {
	if err := j.Bind(in, out, params); err != nil {
		return nil, err
	}
	if err := j.Encode(); err != nil {
		return nil, err
	}
	if _, err := j.Submit(); err != nil {
		return nil, err
	}
	if err := j.Wait(ctx); err != nil {
		return nil, err
	}
	return j.Readback()
}

// Release frees the staging buffer if it is still held. Work still
// executing on the device is waited for first. The bound textures belong
// to the caller and are left alone.
func (j *ComputeJob) Release() {
	if j.completion != nil {
		<-j.completion.Done()
	}
	if j.staging != nil {
		j.staging.Release()
		j.staging = nil
	}
	j.seq = nil
}
