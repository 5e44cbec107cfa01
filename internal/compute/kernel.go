// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compute

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/naga/wgsl"
)

// TileWidthConstant is the name of the constant carrying the tile width
// into kernel source. The host defines it; kernels must not.
const TileWidthConstant = "TILE_WIDTH"

// CompileOptions configures Compile.
type CompileOptions struct {
	// Label names the program in logs and errors.
	Label string

	// Defines are u32 constants declared ahead of the source, one
	// `const NAME: u32 = Vu;` line each, in name order.
	Defines map[string]uint32
}

// KernelProgram is a compiled kernel. Pipelines for its entry points are
// created on first use and released with the program.
type KernelProgram struct {
	mu        sync.Mutex
	dc        *DeviceContext
	label     string
	source    string
	defines   map[string]uint32
	entries   []string
	module    Module
	pipelines map[string]*KernelPipeline
	released  bool
}

// KernelPipeline is an executable entry point of a KernelProgram.
type KernelPipeline struct {
	program *KernelProgram
	name    string
	handle  Pipeline
}

// Name returns the entry point name.
func (p *KernelPipeline) Name() string { return p.name }

// Program returns the program the pipeline belongs to.
func (p *KernelPipeline) Program() *KernelProgram { return p.program }

// Preamble renders defines as WGSL constant declarations.
func Preamble(defines map[string]uint32) string {
	names := make([]string, 0, len(defines))
	for n := range defines {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "const %s: u32 = %du;\n", n, defines[n])
	}
	return b.String()
}

// Compile validates WGSL kernel source and builds a device module from it.
// Front-end failures are returned as *CompileError with the compiler's
// diagnostics; no fallback kernel is substituted.
func Compile(dc *DeviceContext, source string, opts CompileOptions) (*KernelProgram, error) {
	full := Preamble(opts.Defines) + source

	entries, err := parseEntryPoints(full)
	if err != nil {
		return nil, &CompileError{Label: opts.Label, Diagnostics: []string{err.Error()}}
	}

	dev, err := dc.device()
	if err != nil {
		return nil, err
	}
	m, err := dev.CreateModule(opts.Label, full, entries)
	if err != nil {
		return nil, &CompileError{Label: opts.Label, Diagnostics: []string{err.Error()}}
	}

	defines := make(map[string]uint32, len(opts.Defines))
	for k, v := range opts.Defines {
		defines[k] = v
	}

	slogger().Debug("compute: kernel compiled", "label", opts.Label, "entry_points", entries)

	return &KernelProgram{
		dc:        dc,
		label:     opts.Label,
		source:    full,
		defines:   defines,
		entries:   entries,
		module:    m,
		pipelines: make(map[string]*KernelPipeline),
	}, nil
}

// parseEntryPoints runs the WGSL front end and returns the declared entry
// points in declaration order.
func parseEntryPoints(source string) ([]string, error) {
	tokens, err := wgsl.NewLexer(source).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ast, err := wgsl.NewParser(tokens).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	module, err := wgsl.Lower(ast)
	if err != nil {
		return nil, fmt.Errorf("lower: %w", err)
	}

	names := make([]string, 0, len(module.EntryPoints))
	for _, ep := range module.EntryPoints {
		names = append(names, ep.Name)
	}
	return names, nil
}

// Label returns the program label.
func (k *KernelProgram) Label() string { return k.label }

// Source returns the compiled source, preamble included.
func (k *KernelProgram) Source() string { return k.source }

// EntryPoints returns the declared entry point names.
func (k *KernelProgram) EntryPoints() []string {
	return slices.Clone(k.entries)
}

// Define returns the value of a host-defined constant.
func (k *KernelProgram) Define(name string) (uint32, bool) {
	v, ok := k.defines[name]
	return v, ok
}

// TileWidth returns the tile width the program was compiled with.
func (k *KernelProgram) TileWidth() (uint32, bool) {
	return k.Define(TileWidthConstant)
}

// EntryPoint returns the pipeline for name, creating it on first use.
// A name the source does not declare fails with *EntryPointNotFoundError
// before anything is created on the device.
func (k *KernelProgram) EntryPoint(name string) (*KernelPipeline, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.released {
		return nil, fmt.Errorf("%w: kernel %q", ErrResourceReleased, k.label)
	}
	if p, ok := k.pipelines[name]; ok {
		return p, nil
	}
	if !slices.Contains(k.entries, name) {
		return nil, &EntryPointNotFoundError{Name: name, Available: slices.Clone(k.entries)}
	}

	dev, err := k.dc.device()
	if err != nil {
		return nil, err
	}
	h, err := dev.CreatePipeline(k.module, name)
	if err != nil {
		return nil, fmt.Errorf("compute: create pipeline %q: %w", name, err)
	}

	p := &KernelPipeline{program: k, name: name, handle: h}
	k.pipelines[name] = p
	return p, nil
}

// Release destroys the pipelines and the module.
func (k *KernelProgram) Release() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.released {
		return
	}
	k.released = true
	for _, p := range k.pipelines {
		p.handle.Destroy()
	}
	k.pipelines = nil
	k.module.Destroy()
}
