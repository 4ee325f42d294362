// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// PlaceholderEdge is the edge length, in millimeters, of the cube
// written by WritePlaceholder. It is far below any nozzle width, so
// the engine accepts it as a mesh but extrudes nothing for it.
const PlaceholderEdge = 0.001

// PlaceholderName is the file name WritePlaceholder uses.
const PlaceholderName = "placeholder-cube.stl"

// WritePlaceholder writes the degenerate placeholder cube as a binary
// STL file in directory and returns its path. The file is rewritten
// on every call; it is scratch output, not a cache artifact.
func WritePlaceholder(directory string) (string, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	path := filepath.Join(directory, PlaceholderName)
	half := PlaceholderEdge / 2
	if err := WriteBinarySTL(path, cubeTriangles(Vector3{half, half, half})); err != nil {
		return "", err
	}
	return path, nil
}

// Triangle is three vertices wound counter-clockwise seen from outside.
type Triangle [3]Vector3

// WriteBinarySTL writes triangles to path atomically.
func WriteBinarySTL(path string, triangles []Triangle) error {
	var buffer bytes.Buffer
	header := make([]byte, stlHeaderSize)
	copy(header, "strata binary stl")
	buffer.Write(header)
	binary.Write(&buffer, binary.LittleEndian, uint32(len(triangles)))
	for _, triangle := range triangles {
		normal := triangleNormal(triangle)
		for _, value := range []float64{
			normal.X, normal.Y, normal.Z,
			triangle[0].X, triangle[0].Y, triangle[0].Z,
			triangle[1].X, triangle[1].Y, triangle[1].Z,
			triangle[2].X, triangle[2].Y, triangle[2].Z,
		} {
			binary.Write(&buffer, binary.LittleEndian, float32(value))
		}
		binary.Write(&buffer, binary.LittleEndian, uint16(0))
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(buffer.Bytes()); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		tmpFile.Close()
		return fmt.Errorf("setting mode of %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}

	success = true
	return nil
}

// ReadBounds returns the local bounding box of the STL file at path.
// Binary and ASCII STL are both accepted; binary is detected by the
// file size matching the triangle count in the header.
func ReadBounds(path string) (Box, error) {
	file, err := os.Open(path)
	if err != nil {
		return Box{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Box{}, fmt.Errorf("stat %s: %w", path, err)
	}

	reader := bufio.NewReader(file)
	if info.Size() >= stlHeaderSize+4 {
		prefix, err := reader.Peek(stlHeaderSize + 4)
		if err != nil {
			return Box{}, fmt.Errorf("reading %s: %w", path, err)
		}
		count := binary.LittleEndian.Uint32(prefix[stlHeaderSize:])
		if int64(stlHeaderSize+4)+int64(count)*stlTriangleSize == info.Size() {
			return readBinaryBounds(reader, count)
		}
	}
	return readASCIIBounds(reader)
}

func readBinaryBounds(reader io.Reader, count uint32) (Box, error) {
	if _, err := io.CopyN(io.Discard, reader, stlHeaderSize+4); err != nil {
		return Box{}, err
	}
	box := EmptyBox()
	record := make([]byte, stlTriangleSize)
	for index := uint32(0); index < count; index++ {
		if _, err := io.ReadFull(reader, record); err != nil {
			return Box{}, fmt.Errorf("reading triangle %d: %w", index, err)
		}
		// Skip the 12-byte normal; three vertices follow.
		for vertex := 0; vertex < 3; vertex++ {
			offset := 12 + vertex*12
			box = box.Extend(Vector3{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(record[offset:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(record[offset+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(record[offset+8:]))),
			})
		}
	}
	return box, nil
}

var errNoVertices = errors.New("stl contains no vertices")

func readASCIIBounds(reader io.Reader) (Box, error) {
	box := EmptyBox()
	seen := false
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 || fields[0] != "vertex" {
			continue
		}
		var point [3]float64
		for axis := 0; axis < 3; axis++ {
			value, err := strconv.ParseFloat(fields[axis+1], 64)
			if err != nil {
				return Box{}, fmt.Errorf("parsing vertex %q: %w", scanner.Text(), err)
			}
			point[axis] = value
		}
		box = box.Extend(Vector3{point[0], point[1], point[2]})
		seen = true
	}
	if err := scanner.Err(); err != nil {
		return Box{}, err
	}
	if !seen {
		return Box{}, errNoVertices
	}
	return box, nil
}

// cubeTriangles returns the twelve triangles of an origin-centered
// cube with the given half extents.
func cubeTriangles(half Vector3) []Triangle {
	corner := func(x, y, z float64) Vector3 {
		return Vector3{x * half.X, y * half.Y, z * half.Z}
	}
	v := [8]Vector3{
		corner(-1, -1, -1), corner(1, -1, -1), corner(1, 1, -1), corner(-1, 1, -1),
		corner(-1, -1, 1), corner(1, -1, 1), corner(1, 1, 1), corner(-1, 1, 1),
	}
	faces := [6][4]int{
		{0, 3, 2, 1}, // bottom
		{4, 5, 6, 7}, // top
		{0, 1, 5, 4}, // front
		{2, 3, 7, 6}, // back
		{1, 2, 6, 5}, // right
		{3, 0, 4, 7}, // left
	}
	triangles := make([]Triangle, 0, 12)
	for _, face := range faces {
		triangles = append(triangles,
			Triangle{v[face[0]], v[face[1]], v[face[2]]},
			Triangle{v[face[0]], v[face[2]], v[face[3]]},
		)
	}
	return triangles
}

func triangleNormal(triangle Triangle) Vector3 {
	ax, ay, az := triangle[1].X-triangle[0].X, triangle[1].Y-triangle[0].Y, triangle[1].Z-triangle[0].Z
	bx, by, bz := triangle[2].X-triangle[0].X, triangle[2].Y-triangle[0].Y, triangle[2].Z-triangle[0].Z
	normal := Vector3{ay*bz - az*by, az*bx - ax*bz, ax*by - ay*bx}
	length := math.Sqrt(normal.X*normal.X + normal.Y*normal.Y + normal.Z*normal.Z)
	if length == 0 {
		return Vector3{}
	}
	return normal.Scale(1 / length)
}
