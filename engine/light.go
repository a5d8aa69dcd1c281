// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"

	"cogentcore.org/core/math32"
	fmath "github.com/chewxy/math32"
)

// LightTypes are the types of [Light].
type LightTypes int32

const (
	// DirectionalLight shines along its direction from infinitely
	// far away, like the sun.
	DirectionalLight LightTypes = iota

	// PointLight shines in all directions from its position,
	// fading out at its range.
	PointLight

	// SpotLight is a point light limited to a cone around its direction.
	SpotLight

	LightTypesN
)

var lightTypeNames = [...]string{"Directional", "Point", "Spot"}

func (lt LightTypes) String() string {
	if lt >= 0 && lt < LightTypesN {
		return lightTypeNames[lt]
	}
	return fmt.Sprintf("LightTypes(%d)", int32(lt))
}

// Program returns the name of the lighting program of the type.
func (lt LightTypes) Program() string {
	switch lt {
	case PointLight:
		return PointProgram
	case SpotLight:
		return SpotProgram
	}
	return DirectionalProgram
}

// Light is a light of the scene. The fields used depend on the Type.
// Lights are identified by pointer: the renderer keeps the shadow map
// and values of each light across frames.
type Light struct {

	// Name is used in logging.
	Name string

	// Type is the type of light.
	Type LightTypes

	// Color is the color times the intensity.
	Color math32.Vector3

	// Position is the position of point and spot lights.
	Position math32.Vector3

	// Direction is the direction of directional and spot lights.
	Direction math32.Vector3

	// Range is the distance at which point and spot lights fade out.
	Range float32

	// Cutoff is the half angle of the cone of a spot light, in radians.
	Cutoff float32

	// Shadows makes the light cast shadows.
	Shadows bool

	// Static marks a light that does not move, whose shadow map is
	// only rendered again when the number of static lights changes
	// or the light is marked dirty with [Light.MarkDirty].
	Static bool

	// ViewProjection is the projection of the shadow map of the light.
	ViewProjection math32.Matrix4

	dirty bool
}

// NewDirectionalLight returns a new directional light.
func NewDirectionalLight(name string, color, dir math32.Vector3) *Light {
	return &Light{Name: name, Type: DirectionalLight, Color: color, Direction: dir, ViewProjection: *math32.Identity4(), dirty: true}
}

// NewPointLight returns a new point light.
func NewPointLight(name string, color, pos math32.Vector3, rng float32) *Light {
	return &Light{Name: name, Type: PointLight, Color: color, Position: pos, Range: rng, ViewProjection: *math32.Identity4(), dirty: true}
}

// NewSpotLight returns a new spot light with a cone of the given
// half angle in radians.
func NewSpotLight(name string, color, pos, dir math32.Vector3, rng, cutoff float32) *Light {
	return &Light{Name: name, Type: SpotLight, Color: color, Position: pos, Direction: dir, Range: rng, Cutoff: cutoff, ViewProjection: *math32.Identity4(), dirty: true}
}

// MarkDirty marks the shadow map of the light as out of date,
// for a static light that has moved.
func (lt *Light) MarkDirty() {
	lt.dirty = true
}

// Dirty returns true if the shadow map is marked out of date.
func (lt *Light) Dirty() bool {
	return lt.dirty
}

// CosCutoff returns the cosine of the cutoff angle.
func (lt *Light) CosCutoff() float32 {
	return fmath.Cos(lt.Cutoff)
}

func (lt *Light) String() string {
	return fmt.Sprintf("%s light %q", lt.Type, lt.Name)
}
