// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compute orchestrates kernel runs on a compute device: device
// acquisition, texture upload, kernel compilation, dispatch planning,
// command submission and readback.
//
// A run goes through these steps:
//
//	dc, _ := compute.Acquire("")
//	in, _ := compute.CreateTexture(dc, "in", w, h, compute.TextureFormatRGBA8Unorm, compute.UsageKernelReadWrite)
//	out, _ := compute.CreateLike(in, "out")
//	_ = in.Upload(pix)
//	prog, _ := compute.Compile(dc, src, compute.CompileOptions{Defines: map[string]uint32{compute.TileWidthConstant: 256}})
//	p, _ := prog.EntryPoint("sort_tile")
//	job := compute.NewJob(dc.NewQueue(), p)
//	result, _ := job.Run(ctx, in, out, compute.JobParams{})
//
// Backends implement Device and register with Register. The native
// backend lives in compute/native, a CPU backend in compute/software.
package compute
