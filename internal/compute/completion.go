// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"context"
	"fmt"
)

// Completion is the future of one submitted command sequence.
type Completion struct {
	done chan struct{}
	err  error
}

// CommandQueue submits command sequences to a device.
type CommandQueue struct {
	dc *DeviceContext
}

// Device returns the context the queue belongs to.
func (q *CommandQueue) Device() *DeviceContext { return q.dc }

// Submit hands seq to the device and returns without waiting.
func (q *CommandQueue) Submit(seq *CommandSequence) (*Completion, error) {
	dev, err := q.dc.device()
	if err != nil {
		return nil, err
	}
	fence, err := dev.Submit(seq)
	if err != nil {
		return nil, &DeviceError{Op: "submit", Err: err}
	}
	slogger().Debug("compute: submitted", "label", seq.Label, "commands", len(seq.Commands))
	return newCompletion(fence), nil
}

// newCompletion waits for fence in the background. The fence is destroyed
// once it has signalled.
func newCompletion(fence Fence) *Completion {
	c := &Completion{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		defer fence.Destroy()
		if err := fence.Wait(context.Background()); err != nil {
			c.err = &DeviceError{Op: "wait", Err: err}
		}
	}()
	return c
}

// Done is closed when the device has finished the sequence.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the execution error. It is only meaningful after Done.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the sequence has finished or ctx is done. There is no
// built-in timeout.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return fmt.Errorf("compute: wait: %w", ctx.Err())
	}
}

