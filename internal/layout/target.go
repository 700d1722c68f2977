package layout

import (
	"encoding/binary"
	"fmt"
)

// Endian is the byte order of a target.
type Endian uint8

const (
	LittleEndian Endian = iota
	BigEndian
)

func (e Endian) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// ParseEndian accepts "little" or "big".
func ParseEndian(s string) (Endian, error) {
	switch s {
	case "", "little":
		return LittleEndian, nil
	case "big":
		return BigEndian, nil
	default:
		return LittleEndian, fmt.Errorf("unknown endian %q (want little|big)", s)
	}
}

// Target describes the data layout the evaluator models.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrSize  int    // bytes
	PtrAlign int    // bytes
	Endian   Endian
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:   "x86_64-linux-gnu",
		PtrSize:  8,
		PtrAlign: 8,
		Endian:   LittleEndian,
	}
}

// ByteOrder returns the encoding/binary order for the target.
func (t Target) ByteOrder() binary.ByteOrder {
	if t.Endian == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// MaxObjectSize is the largest object size in bytes the target can address.
func (t Target) MaxObjectSize() uint64 {
	return maxObjectSizeFor(t.PtrSize)
}

// Validate rejects pointer sizes the evaluator cannot model.
func (t Target) Validate() error {
	switch t.PtrSize {
	case 2, 4, 8:
	default:
		return fmt.Errorf("unsupported pointer size %d (want 2, 4 or 8)", t.PtrSize)
	}
	if t.PtrAlign <= 0 || t.PtrAlign > t.PtrSize {
		return fmt.Errorf("invalid pointer alignment %d", t.PtrAlign)
	}
	return nil
}
