// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shaders

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"cogentcore.org/pyro/engine"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T) *gpu.ProgramLibrary {
	cx := gpu.NewContext(soft.NewDevice(soft.Options{}))
	t.Cleanup(cx.Release)
	lib := gpu.NewProgramLibrary(cx)
	engine.AddPrograms(lib)
	t.Cleanup(lib.Release)
	return lib
}

func TestSourcesPresent(t *testing.T) {
	for _, p := range Programs {
		for _, file := range []string{p.Vertex, p.Fragment} {
			b, err := fs.ReadFile(Sources, file)
			if assert.NoError(t, err, p.Name) {
				assert.Contains(t, string(b), "#version 450", file)
			}
		}
	}
}

func TestProgramsRegistered(t *testing.T) {
	lib := newLibrary(t)
	names := map[string]bool{}
	for _, p := range Programs {
		assert.False(t, names[p.Name], "duplicate %s", p.Name)
		names[p.Name] = true
		assert.NotNil(t, lib.Source(p.Name), p.Name)
	}
}

func TestOpen(t *testing.T) {
	lib := newLibrary(t)
	fsys := fstest.MapFS{}
	for _, p := range Programs {
		fsys["spv/"+p.Name+".vert.spv"] = &fstest.MapFile{Data: []byte("vert " + p.Name)}
		fsys["spv/"+p.Name+".frag.spv"] = &fstest.MapFile{Data: []byte("frag " + p.Name)}
	}
	require.NoError(t, Open(lib, fsys, "spv"))
	src := lib.Source(engine.SpotProgram)
	assert.Equal(t, "vert "+engine.SpotProgram, string(src.Vertex))
	assert.Equal(t, "frag "+engine.SpotProgram, string(src.Fragment))

	delete(fsys, "spv/"+engine.QuadProgram+".frag.spv")
	assert.Error(t, Open(lib, fsys, "spv"))
}
