package models

import (
	"errors"

	"github.com/google/uuid"
)

// ErrEmptyChunk is returned when a chunk is built from zero lines.
var ErrEmptyChunk = errors.New("log chunk requires at least one line")

// LogChunk is an ordered, immutable group of raw log lines analysed as one unit.
// The zero value is an empty chunk.
type LogChunk struct {
	ID    uuid.UUID
	lines []string
}

// NewLogChunk copies lines into a new chunk with a fresh ID.
func NewLogChunk(lines []string) (LogChunk, error) {
	if len(lines) == 0 {
		return LogChunk{}, ErrEmptyChunk
	}
	cp := make([]string, len(lines))
	copy(cp, lines)
	return LogChunk{ID: uuid.New(), lines: cp}, nil
}

// Lines returns a copy of the chunk's lines.
func (c LogChunk) Lines() []string {
	cp := make([]string, len(c.lines))
	copy(cp, c.lines)
	return cp
}

// Len returns the number of lines in the chunk.
func (c LogChunk) Len() int { return len(c.lines) }

// Line returns the i-th line.
func (c LogChunk) Line(i int) string { return c.lines[i] }
