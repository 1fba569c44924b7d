package snapshot

import (
	"fmt"
	"io"
	"sync"

	"github.com/zecs-dev/zecs/ecs"
)

// Formatter converts one component type's values to and from the payload
// bytes of a snapshot chunk. FormatterVersion is written into every chunk
// so a later, incompatible Formatter can still read data written by an
// older one (ReadValue receives the version the payload was written
// with, not necessarily the registry's current one).
type Formatter[T any] interface {
	FormatterVersion() uint16
	WriteValue(w io.Writer, v T) error
	ReadValue(r io.Reader, version uint16) (T, error)
}

// boxedFormatter is the type-erased surface the writer/reader use; every
// registration produces one regardless of T.
type boxedFormatter interface {
	latestVersion() uint16
	writeBoxed(w io.Writer, v any) error
	readBoxed(r io.Reader, version uint16) (any, error)
}

type formatterBox[T any] struct {
	f Formatter[T]
}

func (b formatterBox[T]) latestVersion() uint16 { return b.f.FormatterVersion() }

func (b formatterBox[T]) writeBoxed(w io.Writer, v any) error {
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("snapshot: value %T does not match formatter's type", v)
	}
	return b.f.WriteValue(w, tv)
}

func (b formatterBox[T]) readBoxed(r io.Reader, version uint16) (any, error) {
	return b.f.ReadValue(r, version)
}

type registryEntry struct {
	latest  boxedFormatter
	legacy  map[uint16]boxedFormatter
}

var (
	registryMu sync.RWMutex
	registry   = map[ecs.TypeID]*registryEntry{}
)

// Register installs f as the latest (current write version) Formatter for
// c's component type. Calling it twice for the same type panics: a type may
// have only one "latest" formatter at a time, matching how ecs.Register
// rejects re-registering the same stable id.
func Register[T any](c ecs.Component[T], f Formatter[T]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	id := c.TypeID()
	e, ok := registry[id]
	if !ok {
		e = &registryEntry{legacy: make(map[uint16]boxedFormatter)}
		registry[id] = e
	}
	if e.latest != nil {
		panic(fmt.Sprintf("snapshot: %q already has a latest formatter registered", id))
	}
	box := formatterBox[T]{f: f}
	e.latest = box
	e.legacy[f.FormatterVersion()] = box
}

// RegisterLegacy installs f as a reader for an older on-disk version of c's
// type, without making it the version new snapshots are written with. Use
// this when a component's payload layout changed and old snapshots must
// still load.
func RegisterLegacy[T any](c ecs.Component[T], f Formatter[T]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	id := c.TypeID()
	e, ok := registry[id]
	if !ok {
		e = &registryEntry{legacy: make(map[uint16]boxedFormatter)}
		registry[id] = e
	}
	e.legacy[f.FormatterVersion()] = formatterBox[T]{f: f}
}

func lookupLatest(id ecs.TypeID) (boxedFormatter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[id]
	if !ok || e.latest == nil {
		return nil, false
	}
	return e.latest, true
}

func lookupVersion(id ecs.TypeID, version uint16) (boxedFormatter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[id]
	if !ok {
		return nil, false
	}
	f, ok := e.legacy[version]
	return f, ok
}
