package nettop

import (
	"bufio"
	"fmt"
	"io"
)

// DecodeStats summarizes a decoded capture.
type DecodeStats struct {
	Lines   int
	Windows int
	Ignored int
}

// Decode reads a captured tool output from r and calls fn for every
// complete window, including the trailing one. It stops at the first error
// returned by fn.
func Decode(r io.Reader, schema Schema, fn func(Window) error) (DecodeStats, error) {
	var stats DecodeStats

	parser := NewParser(schema)
	asm := NewAssembler()

	emit := func(w Window) error {
		stats.Windows++
		stats.Ignored += w.Ignored
		return fn(w)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		stats.Lines++
		if w, ok := asm.Add(parser.Parse(scanner.Text())); ok {
			if err := emit(w); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read capture: %w", err)
	}

	if w, ok := asm.Flush(); ok {
		if err := emit(w); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
