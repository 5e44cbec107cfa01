// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"context"
	"fmt"
)

// ReadTexture copies tex into a staging buffer, waits for the copy and
// returns the contents as width*height*4 tight bytes.
func ReadTexture(ctx context.Context, q *CommandQueue, tex *TextureResource) ([]byte, error) {
	if !tex.Usage().Has(UsageCopySrc) {
		return nil, fmt.Errorf("compute: read %q: %s usage required, have %s", tex.Label(), UsageCopySrc, tex.Usage())
	}
	src, err := tex.handle(q.dc)
	if err != nil {
		return nil, err
	}

	staging, err := newStagingBuffer(q.dc, "readback", tex.Width(), tex.Height())
	if err != nil {
		return nil, err
	}

	seq := &CommandSequence{Label: "readback " + tex.Label()}
	seq.Copy(CopyCommand{
		Src:         src,
		Dst:         staging.buf,
		Width:       tex.Width(),
		Height:      tex.Height(),
		BytesPerRow: staging.RowPitch(),
	})

	c, err := q.Submit(seq)
	if err != nil {
		staging.Release()
		return nil, err
	}
	if err := c.Wait(ctx); err != nil {
		// The copy may still be running; free the buffer once it is done.
		go func() {
			<-c.Done()
			staging.Release()
		}()
		return nil, err
	}

	pix, err := staging.Extract()
	if err != nil {
		return nil, err
	}
	if want := tex.ByteSize(); len(pix) != want {
		return nil, &SizeMismatchError{What: "readback", Expected: want, Actual: len(pix)}
	}
	return pix, nil
}
