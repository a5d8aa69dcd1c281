// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"cogentcore.org/core/math32"
	fmath "github.com/chewxy/math32"
)

// SRGBFromLinearComp converts a linear color component to
// non-linear (gamma corrected) sRGB.
func SRGBFromLinearComp(lin float32) float32 {
	if lin <= 0.0031308 {
		return 12.92 * lin
	}
	return 1.055*fmath.Pow(lin, 1/2.4) - 0.055
}

// SRGBToLinearComp converts an sRGB color component to linear,
// removing gamma.
func SRGBToLinearComp(srgb float32) float32 {
	if srgb <= 0.04045 {
		return srgb / 12.92
	}
	return fmath.Pow((srgb+0.055)/1.055, 2.4)
}

// SRGBFromLinear converts the color components of c to sRGB,
// keeping alpha.
func SRGBFromLinear(c math32.Vector4) math32.Vector4 {
	return math32.Vec4(SRGBFromLinearComp(c.X), SRGBFromLinearComp(c.Y), SRGBFromLinearComp(c.Z), c.W)
}

// Luminance returns the relative luminance of a linear color.
func Luminance(c math32.Vector4) float32 {
	return 0.2126*c.X + 0.7152*c.Y + 0.0722*c.Z
}

func clamp01(v float32) float32 {
	return fmath.Max(0, fmath.Min(1, v))
}
