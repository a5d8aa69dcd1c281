// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/binary"

	"cogentcore.org/core/math32"
	"cogentcore.org/pyro/gpu"
	"cogentcore.org/pyro/gpu/soft"
)

// Names of the built-in quad programs.
const (
	QuadProgram        = "engine.quad"
	QuadShadowProgram  = "engine.quad.shadow"
	QuadForwardProgram = "engine.quad.forward"
	QuadOverlayProgram = "engine.quad.overlay"
)

// QuadKinds are the ways a [Quad] is drawn.
type QuadKinds int32

const (
	// QuadOpaque is drawn into the G-buffer and lit.
	QuadOpaque QuadKinds = iota

	// QuadForward is blended over the lit scene.
	QuadForward

	// QuadOverlay is blended over the final image.
	QuadOverlay
)

// quadPushSize is the size of the push constants of a quad:
// rect, color, and normal with depth, each a vec4.
const quadPushSize = 48

// Quad is a rectangle drawable aligned with the target, in normalized
// target coordinates with y down, at a fixed depth. The vertex programs
// transform it by the view projection; the software kernels draw it
// untransformed.
type Quad struct {

	// Name is used in logging.
	Name string

	// Kind is how the quad is drawn.
	Kind QuadKinds

	// Rect is the covered area, within [0, 1].
	Rect math32.Box2

	// Depth is the depth of the quad, within [0, 1].
	Depth float32

	// Color is the albedo of an opaque quad, and the blended color
	// of the others.
	Color math32.Vector4

	// Normal is the surface normal of an opaque quad.
	Normal math32.Vector3

	// CastShadow makes the quad cast shadows.
	CastShadow bool

	// Order is the forward priority.
	Order int

	// Hidden hides the quad from the camera.
	Hidden bool
}

// NewQuad returns an opaque quad facing the camera.
func NewQuad(name string, min, max math32.Vector2, depth float32, color math32.Vector4) *Quad {
	return &Quad{Name: name, Rect: math32.Box2{Min: min, Max: max}, Depth: depth, Color: color, Normal: math32.Vec3(0, 0, -1)}
}

func (q *Quad) Program() string {
	switch q.Kind {
	case QuadForward:
		return QuadForwardProgram
	case QuadOverlay:
		return QuadOverlayProgram
	}
	return QuadProgram
}

func (q *Quad) ShadowProgram() string {
	if !q.CastShadow || q.Kind == QuadOverlay {
		return ""
	}
	return QuadShadowProgram
}

func (q *Quad) Forward() bool { return q.Kind == QuadForward }
func (q *Quad) Priority() int { return q.Order }
func (q *Quad) Visible() bool { return !q.Hidden }

// Record pushes the quad parameters and draws its two triangles.
func (q *Quad) Record(rec *gpu.Recorder) error {
	p := [quadPushSize / 4]float32{
		q.Rect.Min.X, q.Rect.Min.Y, q.Rect.Max.X, q.Rect.Max.Y,
		q.Color.X, q.Color.Y, q.Color.Z, q.Color.W,
		q.Normal.X, q.Normal.Y, q.Normal.Z, q.Depth,
	}
	data := make([]byte, quadPushSize)
	binary.Encode(data, binary.LittleEndian, p)
	rec.Push(data)
	return rec.Draw(6, 1)
}

func addQuadPrograms(lib *gpu.ProgramLibrary) {
	vp := func(name string) *gpu.Interface {
		return gpu.NewInterface(name).Add(ViewProjectionName, gpu.Float32Matrix4, *math32.Identity4())
	}
	lib.Add(&gpu.ProgramSource{Name: QuadProgram, Interface: vp(QuadProgram), Depth: true, PushSize: quadPushSize, Kernel: soft.Kernel(quadKernel)})
	lib.Add(&gpu.ProgramSource{Name: QuadShadowProgram, Interface: vp(QuadShadowProgram), Depth: true, PushSize: quadPushSize, Kernel: soft.Kernel(quadKernel)})
	lib.Add(&gpu.ProgramSource{Name: QuadForwardProgram, Interface: vp(QuadForwardProgram), Depth: true, DepthReadOnly: true, Blend: gpu.BlendAlpha, PushSize: quadPushSize, Kernel: soft.Kernel(quadKernel)})
	lib.Add(&gpu.ProgramSource{Name: QuadOverlayProgram, Interface: gpu.NewInterface(QuadOverlayProgram), Blend: gpu.BlendAlpha, PushSize: quadPushSize, Kernel: soft.Kernel(quadKernel)})
}

// quadKernel draws all kinds of quads: the first output gets the
// color and the second one the normal, if the target has them.
func quadKernel(fr *soft.Fragment) {
	p := fr.PushFloats()
	if len(p) < quadPushSize/4 || fr.UV.X < p[0] || fr.UV.X >= p[2] || fr.UV.Y < p[1] || fr.UV.Y >= p[3] {
		fr.Discard = true
		return
	}
	fr.Depth = p[11]
	if len(fr.Out) > 0 {
		fr.Out[0] = math32.Vec4(p[4], p[5], p[6], p[7])
	}
	if len(fr.Out) > 1 {
		fr.Out[1] = math32.Vec4(p[8], p[9], p[10], 0)
	}
}
