package mir

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"consteval/internal/source"
	"consteval/internal/types"
)

// Current schema version - increment when ProgramFile format changes
const programSchemaVersion uint16 = 1

// ProgramFile is the on-disk (.cir) form of a Program.
type ProgramFile struct {
	Schema uint16
	Types  types.Table
	Defs   []Def
	Files  []SourceFile
}

// ErrSchemaMismatch is returned when a program file was written by another format version.
var ErrSchemaMismatch = errors.New("program file schema mismatch")

// Encode writes p in msgpack form.
func Encode(w io.Writer, p *Program) error {
	if p == nil || p.Types == nil {
		return errors.New("cannot encode an empty program")
	}
	file := ProgramFile{
		Schema: programSchemaVersion,
		Types:  p.Types.Snapshot(),
		Defs:   p.Defs,
		Files:  p.Files,
	}
	return msgpack.NewEncoder(w).Encode(&file)
}

// Decode reads a program written by Encode.
func Decode(r io.Reader) (*Program, error) {
	var file ProgramFile
	if err := msgpack.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	if file.Schema != programSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, file.Schema, programSchemaVersion)
	}
	in, err := types.FromTable(file.Types)
	if err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	return &Program{Types: in, Defs: file.Defs, Files: file.Files}, nil
}

// WriteFile atomically writes p to path.
func WriteFile(path string, p *Program) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "tmp-*.cir")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()
	bw := bufio.NewWriter(f)
	if err = Encode(bw, p); err != nil {
		_ = f.Close()
		return err
	}
	if err = bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadFile loads a program file from disk.
func ReadFile(path string) (*Program, error) {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// FileSet loads the program's embedded sources so spans can be rendered.
func (p *Program) FileSet() *source.FileSet {
	fs := source.NewFileSet()
	if p == nil {
		return fs
	}
	for _, f := range p.Files {
		fs.Add(f.Path, f.Content)
	}
	return fs
}
