// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sync"

	"cogentcore.org/core/base/errors"
)

// Program is a compiled shader program (a graphics pipeline),
// with the declared [Interface] of its uniforms and textures.
type Program struct {

	// Name is the unique name of the program.
	Name string

	// Interface is the declared set of uniform fields and textures.
	Interface *Interface

	handle DeviceProgram
}

// NewProgram builds the program source for the given render pass.
func NewProgram(cx *Context, src *ProgramSource, rp *RenderPass) (*Program, error) {
	if src.Interface == nil {
		src.Interface = NewInterface(src.Name)
	}
	h, err := cx.Device.NewProgram(src, rp.handle)
	if errors.Log(err) != nil {
		return nil, err
	}
	return &Program{Name: src.Name, Interface: src.Interface, handle: h}, nil
}

// Handle returns the driver program.
func (p *Program) Handle() DeviceProgram {
	return p.handle
}

// Release destroys the program.
func (p *Program) Release() {
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
}

func (p *Program) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.Name
}

// ProgramLoader yields compiled programs with their declared
// interfaces, by name, for a given render pass.
type ProgramLoader interface {
	Program(name string, rp *RenderPass) (*Program, error)
}

// ProgramLibrary is a [ProgramLoader] from registered program sources.
// Compiled shader binaries may be loaded from a file system with
// [ProgramLibrary.OpenFS]. Programs are built once per render pass,
// and owned by the library.
type ProgramLibrary struct {
	cx *Context

	mu       sync.Mutex
	sources  map[string]*ProgramSource
	programs map[programKey]*Program
}

type programKey struct {
	name string
	rp   *RenderPass
}

// NewProgramLibrary returns an empty library for the context.
func NewProgramLibrary(cx *Context) *ProgramLibrary {
	return &ProgramLibrary{cx: cx, sources: map[string]*ProgramSource{}, programs: map[programKey]*Program{}}
}

// Add registers a program source. A source with the same name
// is replaced for programs built after this.
func (pl *ProgramLibrary) Add(src *ProgramSource) *ProgramSource {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.sources[src.Name] = src
	return src
}

// Source returns the registered source with the given name, or nil.
func (pl *ProgramLibrary) Source(name string) *ProgramSource {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.sources[name]
}

// OpenFS reads the compiled vertex and fragment binaries for the
// named source from fsys, at name.vert.spv and name.frag.spv in dir.
func (pl *ProgramLibrary) OpenFS(fsys fs.FS, dir, name string) error {
	src := pl.Source(name)
	if src == nil {
		return errors.Log(fmt.Errorf("gpu.ProgramLibrary.OpenFS: program %q not registered", name))
	}
	vert, err := fs.ReadFile(fsys, path.Join(dir, name+".vert.spv"))
	if errors.Log(err) != nil {
		return err
	}
	frag, err := fs.ReadFile(fsys, path.Join(dir, name+".frag.spv"))
	if errors.Log(err) != nil {
		return err
	}
	src.Vertex = vert
	src.Fragment = frag
	return nil
}

// Program returns the named program built for the render pass,
// building it on first use.
func (pl *ProgramLibrary) Program(name string, rp *RenderPass) (*Program, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	key := programKey{name, rp}
	if p, ok := pl.programs[key]; ok {
		return p, nil
	}
	src, ok := pl.sources[name]
	if !ok {
		return nil, errors.Log(fmt.Errorf("gpu.ProgramLibrary: program %q not registered", name))
	}
	p, err := NewProgram(pl.cx, src, rp)
	if err != nil {
		return nil, err
	}
	pl.programs[key] = p
	slog.Debug("gpu.ProgramLibrary: built program", "program", name, "renderPass", rp.Name)
	return p, nil
}

// Release destroys all built programs.
func (pl *ProgramLibrary) Release() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	for k, p := range pl.programs {
		p.Release()
		delete(pl.programs, k)
	}
}
