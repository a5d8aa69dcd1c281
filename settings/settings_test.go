// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := New()
	assert.Equal(t, 1280, s.Width)
	assert.Equal(t, 720, s.Height)
	assert.Equal(t, 3, s.FramesInFlight)
	assert.Equal(t, 5*time.Second, s.Timeout())
	assert.True(t, s.Shadows)
	assert.True(t, s.Overlay)
	assert.False(t, s.Unlit)
	assert.Equal(t, float32(1), s.Exposure)
	assert.Equal(t, float32(0.5), s.BloomScale)
	assert.Equal(t, math32.Vec3(0.5, 0.6, 0.7), s.FogColor)
	assert.NotNil(t, s.Stages)
}

func TestSaveOpen(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "pyro.toml")
	s := New()
	s.Exposure = 2
	s.Unlit = true
	s.Stages["fog"] = false
	require.NoError(t, s.Save(fn))

	o, err := Open(fn)
	require.NoError(t, err)
	assert.Equal(t, float32(2), o.Exposure)
	assert.True(t, o.Unlit)
	assert.Equal(t, map[string]bool{"fog": false}, o.Stages)
	assert.Equal(t, 1280, o.Width)
}

func TestOpenPartial(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "pyro.toml")
	require.NoError(t, os.WriteFile(fn, []byte("Exposure = 0.5\nShadows = false\n"), 0666))
	s, err := Open(fn)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), s.Exposure)
	assert.False(t, s.Shadows)
	assert.Equal(t, 3, s.FramesInFlight)

	_, err = Open(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "pyro.toml")
	require.NoError(t, New().Save(fn))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Settings, 8)
	require.NoError(t, Watch(ctx, fn, func(s *Settings) { got <- s }))

	require.NoError(t, os.WriteFile(fn, []byte("Exposure = 3\n"), 0666))
	// a write can be seen while the file is still truncated
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-got:
			if s.Exposure == 3 {
				return
			}
		case <-timeout:
			t.Fatal("settings change not seen")
		}
	}
}
