package source

// FileID indexes a file within a FileSet.
type FileID uint32

// File is one source text embedded in a program. Content is kept exactly as
// the producer wrote it, because span offsets index these bytes.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	// newlines holds the offset of every '\n' in Content.
	newlines []uint32
}

// LineCol is a 1-based line and byte column.
type LineCol struct {
	Line uint32
	Col  uint32
}

// LineCount reports the number of lines, counting a final line without a
// newline.
func (f *File) LineCount() int {
	n := len(f.newlines)
	if len(f.Content) > 0 && f.Content[len(f.Content)-1] != '\n' {
		n++
	}
	return n
}
