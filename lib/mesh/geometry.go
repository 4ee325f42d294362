// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"math"
	"strconv"
	"strings"
)

// Vector3 is a point or direction in millimeters.
type Vector3 struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Scale returns v scaled by factor.
func (v Vector3) Scale(factor float64) Vector3 {
	return Vector3{v.X * factor, v.Y * factor, v.Z * factor}
}

// Matrix4 is a 4x4 affine transform in row-major, row-vector order.
type Matrix4 [16]float64

// Identity returns the identity transform.
func Identity() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a transform moving points by offset.
func Translation(offset Vector3) Matrix4 {
	m := Identity()
	m[12], m[13], m[14] = offset.X, offset.Y, offset.Z
	return m
}

// Scaling returns a transform scaling each axis independently.
func Scaling(factors Vector3) Matrix4 {
	m := Identity()
	m[0], m[5], m[10] = factors.X, factors.Y, factors.Z
	return m
}

// Then returns the transform that applies m first and other second.
func (m Matrix4) Then(other Matrix4) Matrix4 {
	var result Matrix4
	for row := 0; row < 4; row++ {
		for column := 0; column < 4; column++ {
			var total float64
			for k := 0; k < 4; k++ {
				total += m[row*4+k] * other[k*4+column]
			}
			result[row*4+column] = total
		}
	}
	return result
}

// TransformPoint applies m to p.
func (m Matrix4) TransformPoint(p Vector3) Vector3 {
	return Vector3{
		X: p.X*m[0] + p.Y*m[4] + p.Z*m[8] + m[12],
		Y: p.X*m[1] + p.Y*m[5] + p.Z*m[9] + m[13],
		Z: p.X*m[2] + p.Y*m[6] + p.Z*m[10] + m[14],
	}
}

// IsZero reports whether every element is zero, which only happens
// for an uninitialized matrix.
func (m Matrix4) IsZero() bool {
	return m == Matrix4{}
}

// Format renders the sixteen values comma-joined, rounded to six
// decimals with trailing zeros trimmed, in the form the engine's -m
// argument expects.
func (m Matrix4) Format() string {
	values := make([]string, len(m))
	for index, value := range m {
		values[index] = formatCoordinate(value)
	}
	return strings.Join(values, ",")
}

func formatCoordinate(value float64) string {
	rounded := math.Round(value*1e6) / 1e6
	if rounded == 0 {
		// Avoid "-0" for tiny negative values.
		return "0"
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vector3
}

// EmptyBox returns a box that any Extend call replaces.
func EmptyBox() Box {
	return Box{
		Min: Vector3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: Vector3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

// Extend grows b to include p.
func (b Box) Extend(p Vector3) Box {
	return Box{
		Min: Vector3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)},
		Max: Vector3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)},
	}
}

// IsEmpty reports whether b encloses no volume in X or Y. Both the
// zero Box and EmptyBox are empty.
func (b Box) IsEmpty() bool {
	return !(b.Max.X > b.Min.X) || !(b.Max.Y > b.Min.Y)
}

// Center returns the midpoint of b.
func (b Box) Center() Vector3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the extent of b on each axis.
func (b Box) Size() Vector3 {
	return Vector3{b.Max.X - b.Min.X, b.Max.Y - b.Min.Y, b.Max.Z - b.Min.Z}
}
