// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image"
	"path/filepath"
	"testing"

	"cogentcore.org/core/base/iox/imagex"
	"cogentcore.org/pyro/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	dir := t.TempDir()
	st := settings.New()
	st.Width, st.Height = 32, 24
	st.ShadowSize = 16
	cfg := &Config{Settings: filepath.Join(dir, "pyro.toml"), Output: filepath.Join(dir, "out.png"), Frames: 2}
	require.NoError(t, st.Save(cfg.Settings))

	require.NoError(t, Render(cfg))
	img, format, err := imagex.Open(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, imagex.PNG, format)
	assert.Equal(t, image.Pt(32, 24), img.Bounds().Size())
}

func TestRenderDefaultSettings(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Settings: filepath.Join(dir, "missing.toml")}
	st, err := loadSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, settings.New().Width, st.Width)
}

func TestDemoSceneUpdate(t *testing.T) {
	sc := newDemoScene()
	x := sc.block.Rect.Min.X
	pos := sc.spot.Position
	sc.Update(0.5)
	assert.NotEqual(t, x, sc.block.Rect.Min.X)
	assert.NotEqual(t, pos, sc.spot.Position)
	assert.InDelta(t, 0.2, sc.block.Rect.Max.X-sc.block.Rect.Min.X, 1e-6)
	assert.NotNil(t, sc.Camera())
	assert.Len(t, sc.Lights(), 2)
}
