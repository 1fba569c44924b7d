package snapshot

import (
	"encoding/binary"
	"io"
)

// BinaryFormatter adapts encoding/binary.Write/Read to the Formatter
// interface for any fixed-size T (a struct of only fixed-width numeric
// fields, no pointers or slices) — the common case for simulation
// components like a position or velocity. Version identifies the payload
// layout; bump it and register the old one with RegisterLegacy whenever a
// field is added, removed or reordered.
type BinaryFormatter[T any] struct {
	Version uint16
}

func (f BinaryFormatter[T]) FormatterVersion() uint16 { return f.Version }

func (f BinaryFormatter[T]) WriteValue(w io.Writer, v T) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func (f BinaryFormatter[T]) ReadValue(r io.Reader, version uint16) (T, error) {
	var v T
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
