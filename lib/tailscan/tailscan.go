// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tailscan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultPageSize is the window size used when callers pass a
// non-positive page size.
const DefaultPageSize = 4096

// FindSentinel reports whether needle occurs in the first size bytes
// of source, scanning from the end backwards.
//
// Window k (starting at 1) begins at max(0, size - pageSize*k - padding)
// and spans pageSize+padding bytes, where padding is len(needle). The
// scan stops at the first window containing needle, or after the
// window that starts at offset 0.
func FindSentinel(source io.ReaderAt, size int64, needle string, pageSize int) (bool, error) {
	if needle == "" {
		return true, nil
	}
	if size <= 0 {
		return false, nil
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	target := []byte(needle)
	padding := int64(len(target))
	window := int64(pageSize) + padding
	buffer := make([]byte, window)

	for attempt := int64(1); ; attempt++ {
		position := size - int64(pageSize)*attempt - padding
		if position < 0 {
			position = 0
		}

		length := window
		if position+length > size {
			length = size - position
		}

		read, err := source.ReadAt(buffer[:length], position)
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading window at offset %d: %w", position, err)
		}
		if bytes.Contains(buffer[:read], target) {
			return true, nil
		}
		if position == 0 {
			return false, nil
		}
	}
}

// FileContains reports whether needle occurs in the file at path using
// [FindSentinel]. A file that does not exist contains nothing and
// yields false with a nil error.
func FileContains(path, needle string, pageSize int) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	found, err := FindSentinel(file, info.Size(), needle, pageSize)
	if err != nil {
		return false, fmt.Errorf("scanning %s: %w", path, err)
	}
	return found, nil
}
