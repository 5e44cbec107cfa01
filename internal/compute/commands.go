// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import "encoding/binary"

// Params is the uniform block every kernel receives at binding 0.
type Params struct {
	Width  uint32
	Height uint32
	Offset uint32
	Flags  uint32
}

// FlagDescending asks sorting kernels for descending order.
const FlagDescending uint32 = 1

// ParamsSize is the size of the encoded Params block in bytes.
const ParamsSize = 16

// Bytes encodes p in the std140 layout the kernels declare.
func (p Params) Bytes() []byte {
	buf := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], p.Width)
	binary.LittleEndian.PutUint32(buf[4:], p.Height)
	binary.LittleEndian.PutUint32(buf[8:], p.Offset)
	binary.LittleEndian.PutUint32(buf[12:], p.Flags)
	return buf
}

// Command is one recorded operation. The set of commands is closed.
type Command interface {
	isCommand()
}

// DispatchCommand runs a pipeline over Geometry, reading Src and writing Dst.
type DispatchCommand struct {
	Label    string
	Pipeline Pipeline
	Src      Surface
	Dst      Surface
	Params   Params
	Geometry Geometry
}

// CopyCommand copies a whole surface into a staging buffer, rows
// BytesPerRow apart.
type CopyCommand struct {
	Src         Surface
	Dst         Buffer
	Width       uint32
	Height      uint32
	BytesPerRow uint32
}

func (*DispatchCommand) isCommand() {}
func (*CopyCommand) isCommand()     {}

// CommandSequence is an ordered list of commands submitted as one unit.
// Each command observes the writes of the commands before it.
type CommandSequence struct {
	Label    string
	Commands []Command
}

// Dispatch appends a dispatch.
func (s *CommandSequence) Dispatch(cmd DispatchCommand) {
	s.Commands = append(s.Commands, &cmd)
}

// Copy appends a surface-to-buffer copy.
func (s *CommandSequence) Copy(cmd CopyCommand) {
	s.Commands = append(s.Commands, &cmd)
}

// Dispatches returns the number of dispatch commands.
func (s *CommandSequence) Dispatches() int {
	n := 0
	for _, c := range s.Commands {
		if _, ok := c.(*DispatchCommand); ok {
			n++
		}
	}
	return n
}
