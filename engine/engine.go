// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine is the frame orchestrator of the Pyro renderer.
// A [Renderer] records each frame of a [Scene] as a fixed sequence of
// stages into the recorders of a frame slot: shadow maps, the deferred
// geometry pass, lighting, forward objects, the post-processing chain
// and the overlay, and then submits the frame and presents it.
package engine

import (
	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
)

// Names of the values the renderer sets on the programs of drawables,
// if they are declared in the program interface.
const (
	// ViewProjectionName is the camera view projection matrix,
	// or the light one for shadow programs.
	ViewProjectionName = "ViewProjection"

	// CameraPositionName is the camera position.
	CameraPositionName = "CameraPosition"

	// SizeName is the size of the target, for overlay programs.
	SizeName = "Size"
)

// ErrNoCamera is the fatal error of drawing without a camera.
var ErrNoCamera = errors.New("engine: no camera set before draw")

// Camera is the camera collaborator. The matrices are computed by
// the camera and used as given.
type Camera interface {
	Position() math32.Vector3
	ViewProjection() math32.Matrix4
	InverseViewProjection() math32.Matrix4

	// Near and Far are the distances of the clip planes.
	Near() float32
	Far() float32
}

// Drawable is an object drawn by the renderer.
type Drawable interface {

	// Program is the name of the program drawing the object: a
	// geometry program writing albedo and normal, or for a forward
	// or overlay object, a program writing color.
	Program() string

	// ShadowProgram is the name of the program drawing the object
	// into shadow maps, or "" if it casts no shadow.
	ShadowProgram() string

	// Forward returns true for objects drawn over the lit scene
	// with their own program instead of the deferred passes.
	Forward() bool

	// Priority orders forward objects: higher priority objects
	// are drawn later, over lower ones.
	Priority() int

	// Visible returns false if the object is not seen by the camera.
	// Objects cast shadows regardless.
	Visible() bool

	// Record records the draw of the object, with its program and
	// values already bound.
	Record(rec *gpu.Recorder) error
}

// Scene is the scene collaborator.
type Scene interface {

	// Camera returns the active camera, or nil.
	Camera() Camera

	// Drawables returns the 3D objects.
	Drawables() []Drawable

	// Lights returns the lights.
	Lights() []*Light

	// Overlay returns the 2D objects drawn over the final image.
	Overlay() []Drawable

	// Update advances the scene by dt seconds.
	Update(dt float32)
}

// Stats are counters of the frames of a [Renderer].
type Stats struct {

	// Frames is the number of frames submitted.
	Frames int

	// Skipped is the number of frames not rendered or not presented
	// because the surface was stale or the window minimized.
	Skipped int

	// Recreations is the number of times the frame resources were
	// recreated for a new size.
	Recreations int
}
