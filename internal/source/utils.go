package source

import (
	"bytes"
	"path/filepath"
	"sort"

	"fortio.org/safecast"
)

func indexNewlines(content []byte) []uint32 {
	out := make([]uint32, 0, bytes.Count(content, []byte{'\n'}))
	for i, b := range content {
		if b != '\n' {
			continue
		}
		off, err := safecast.Conv[uint32](i)
		if err != nil {
			break
		}
		out = append(out, off)
	}
	return out
}

// lineCol maps a byte offset to its position. A newline belongs to the line
// it ends.
func (f *File) lineCol(off uint32) LineCol {
	// number of newlines strictly before off
	before := sort.Search(len(f.newlines), func(i int) bool { return f.newlines[i] >= off })
	line, err := safecast.Conv[uint32](before + 1)
	if err != nil {
		return LineCol{Line: 1, Col: off + 1}
	}
	if before == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}
	return LineCol{Line: line, Col: off - f.newlines[before-1]}
}

func normalizePath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}
