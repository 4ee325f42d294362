// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import "sync"

// DefaultStderrLimit is how many trailing bytes of engine stderr are
// kept when no limit is configured.
const DefaultStderrLimit = 64 * 1024

// tailBuffer is a fixed-size circular buffer keeping the most recent
// bytes written to it. It implements io.Writer so it can be attached
// directly to exec.Cmd.Stderr, and is safe for concurrent use.
type tailBuffer struct {
	mutex    sync.Mutex
	data     []byte
	capacity int
	// writePosition is the next position to write within data.
	writePosition int
	// totalWritten counts every byte ever written, including bytes
	// since overwritten.
	totalWritten uint64
}

func newTailBuffer(capacity int) *tailBuffer {
	if capacity <= 0 {
		capacity = DefaultStderrLimit
	}
	return &tailBuffer{
		data:     make([]byte, capacity),
		capacity: capacity,
	}
}

// Write appends bytes, overwriting the oldest data when full. It never
// fails.
func (ring *tailBuffer) Write(data []byte) (int, error) {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()

	// Only the last capacity bytes of a large write can survive.
	skipped := 0
	if len(data) > ring.capacity {
		skipped = len(data) - ring.capacity
	}
	for offset := skipped; offset < len(data); {
		available := ring.capacity - ring.writePosition
		copyLength := len(data) - offset
		if copyLength > available {
			copyLength = available
		}
		copy(ring.data[ring.writePosition:ring.writePosition+copyLength], data[offset:offset+copyLength])
		ring.writePosition = (ring.writePosition + copyLength) % ring.capacity
		offset += copyLength
	}
	ring.totalWritten += uint64(len(data))
	return len(data), nil
}

// Bytes returns the retained tail in write order.
func (ring *tailBuffer) Bytes() []byte {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()

	stored := ring.capacity
	if ring.totalWritten < uint64(ring.capacity) {
		stored = int(ring.totalWritten)
	}
	result := make([]byte, stored)

	readPosition := (ring.writePosition - stored + ring.capacity) % ring.capacity
	for copied := 0; copied < stored; {
		available := ring.capacity - readPosition
		copyLength := stored - copied
		if copyLength > available {
			copyLength = available
		}
		copy(result[copied:copied+copyLength], ring.data[readPosition:readPosition+copyLength])
		readPosition = (readPosition + copyLength) % ring.capacity
		copied += copyLength
	}
	return result
}

// Truncated reports whether bytes were lost to wraparound.
func (ring *tailBuffer) Truncated() bool {
	ring.mutex.Lock()
	defer ring.mutex.Unlock()
	return ring.totalWritten > uint64(ring.capacity)
}
