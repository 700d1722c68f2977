package source

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// FileSet owns the source files referenced by spans of a lowered program.
// It is safe for concurrent use; files are never removed.
type FileSet struct {
	mu    sync.RWMutex
	files []File
	index map[string]FileID // path -> latest id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0, 4),
		index: make(map[string]FileID),
	}
}

// Add registers content under path and returns its id. Adding a path twice
// yields a new id; lookups by path see the latest one.
func (fileSet *FileSet) Add(path string, content []byte) FileID {
	newlines := indexNewlines(content)
	path = normalizePath(path)

	fileSet.mu.Lock()
	defer fileSet.mu.Unlock()
	n, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("too many source files: %w", err))
	}
	id := FileID(n)
	fileSet.files = append(fileSet.files, File{ID: id, Path: path, Content: content, newlines: newlines})
	fileSet.index[path] = id
	return id
}

// Len reports how many files the set holds.
func (fileSet *FileSet) Len() int {
	if fileSet == nil {
		return 0
	}
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	return len(fileSet.files)
}

// Get returns the file for id, or nil if the id is unknown.
func (fileSet *FileSet) Get(id FileID) *File {
	if fileSet == nil {
		return nil
	}
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	if int(id) >= len(fileSet.files) {
		return nil
	}
	return &fileSet.files[id]
}

// Lookup returns the latest file registered under path.
func (fileSet *FileSet) Lookup(path string) (*File, bool) {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	if id, ok := fileSet.index[normalizePath(path)]; ok {
		return &fileSet.files[id], true
	}
	return nil, false
}

// Resolve converts a span into line and column positions.
func (fileSet *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fileSet.Get(span.File)
	if f == nil {
		return LineCol{}, LineCol{}
	}
	return f.lineCol(span.Start), f.lineCol(span.End)
}

// Position renders span as "path:line:col", or "<no-span>" when it cannot be resolved.
func (fileSet *FileSet) Position(span Span) string {
	if fileSet == nil || (span.Start == 0 && span.End == 0) {
		return "<no-span>"
	}
	f := fileSet.Get(span.File)
	if f == nil {
		return "<no-span>"
	}
	start := f.lineCol(span.Start)
	return fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
}

// GetLine returns the 1-based line lineNum without its line terminator.
// Both "\n" and "\r\n" terminators are stripped.
func (f *File) GetLine(lineNum uint32) string {
	if lineNum == 0 || int(lineNum) > f.LineCount() {
		return ""
	}
	start := 0
	if lineNum > 1 {
		start = int(f.newlines[lineNum-2]) + 1
	}
	end := len(f.Content)
	if int(lineNum) <= len(f.newlines) {
		end = int(f.newlines[lineNum-1])
	}
	if end > start && f.Content[end-1] == '\r' {
		end--
	}
	return string(f.Content[start:end])
}
