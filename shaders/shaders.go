// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shaders has the GLSL sources of the built-in programs, for
// the Vulkan driver. They are compiled to SPIR-V with glslc by
// [Compile], and loaded into a program library with [Open].
package shaders

//go:generate go run cogentcore.org/pyro/cmd/pyro shaders -dir spv

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/base/exec"
	"cogentcore.org/pyro/engine"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/render"
)

// Sources are the GLSL sources.
//
//go:embed *.vert *.frag
var Sources embed.FS

// Program is the source files of a built-in program.
type Program struct {

	// Name is the program name in the library.
	Name string

	// Vertex and Fragment are the source file names.
	Vertex, Fragment string

	// Defines are preprocessor definitions, as NAME or NAME=VALUE.
	Defines []string
}

// Programs are all built-in programs.
var Programs = []Program{
	{Name: render.PassThroughProgram, Vertex: "fullscreen.vert", Fragment: "passthrough.frag"},
	{Name: render.BrightProgram, Vertex: "fullscreen.vert", Fragment: "bright.frag"},
	{Name: render.BlurProgram, Vertex: "fullscreen.vert", Fragment: "blur.frag"},
	{Name: render.CombineProgram, Vertex: "fullscreen.vert", Fragment: "combine.frag"},
	{Name: render.FogProgram, Vertex: "fullscreen.vert", Fragment: "fog.frag"},
	{Name: render.TonemapProgram, Vertex: "fullscreen.vert", Fragment: "tonemap.frag"},
	{Name: engine.DirectionalProgram, Vertex: "fullscreen.vert", Fragment: "light.frag", Defines: []string{"LIGHT_TYPE=0"}},
	{Name: engine.PointProgram, Vertex: "fullscreen.vert", Fragment: "light.frag", Defines: []string{"LIGHT_TYPE=1"}},
	{Name: engine.SpotProgram, Vertex: "fullscreen.vert", Fragment: "light.frag", Defines: []string{"LIGHT_TYPE=2"}},
	{Name: engine.UnlitProgram, Vertex: "fullscreen.vert", Fragment: "unlit.frag"},
	{Name: engine.QuadProgram, Vertex: "quad.vert", Fragment: "quad.frag"},
	{Name: engine.QuadShadowProgram, Vertex: "quad.vert", Fragment: "depth.frag"},
	{Name: engine.QuadForwardProgram, Vertex: "quad.vert", Fragment: "quad.color.frag"},
	{Name: engine.QuadOverlayProgram, Vertex: "quad.vert", Fragment: "quad.color.frag", Defines: []string{"OVERLAY"}},
}

// Compile compiles all programs with glslc into dir, as
// name.vert.spv and name.frag.spv files.
func Compile(dir string) error {
	src, err := os.MkdirTemp("", "pyro-shaders")
	if errors.Log(err) != nil {
		return err
	}
	defer os.RemoveAll(src)
	if err := os.CopyFS(src, Sources); errors.Log(err) != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); errors.Log(err) != nil {
		return err
	}
	for _, p := range Programs {
		stages := []struct{ stage, file string }{{"vert", p.Vertex}, {"frag", p.Fragment}}
		for _, st := range stages {
			args := []string{"-fshader-stage=" + st.stage}
			for _, d := range p.Defines {
				args = append(args, "-D"+d)
			}
			out := filepath.Join(dir, p.Name+"."+st.stage+".spv")
			args = append(args, filepath.Join(src, st.file), "-o", out)
			if err := exec.Run("glslc", args...); err != nil {
				return fmt.Errorf("shaders.Compile %s: %w", p.Name, err)
			}
		}
	}
	slog.Info("shaders: compiled", "programs", len(Programs), "dir", dir)
	return nil
}

// Open loads the compiled binaries of all programs from dir in fsys
// into the library, which must have their sources registered.
func Open(lib *gpu.ProgramLibrary, fsys fs.FS, dir string) error {
	for _, p := range Programs {
		if err := lib.OpenFS(fsys, dir, p.Name); err != nil {
			return err
		}
	}
	return nil
}
