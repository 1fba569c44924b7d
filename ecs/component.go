package ecs

import (
	"fmt"
	"sync"

	"github.com/zecs-dev/zecs/ecs/query"
)

// typeDescriptor is the process-wide registration record for one component
// type. It never touches a value of the type directly (that would require
// reflection); instead it captures a factory that builds a typed Pool[T]
// behind the anyPool interface, so the registry itself stays reflection-free
// avoiding the runtime reflection a type-erased component store would need.
type typeDescriptor struct {
	id        TypeID
	index     int
	singleton bool
	newPool   func() anyPool
}

var (
	registryMu      sync.RWMutex
	registryByID    = map[TypeID]*typeDescriptor{}
	registryByIndex = []*typeDescriptor{}
)

// registerConfig holds Register options.
type registerConfig struct {
	singleton bool
}

// RegisterOption configures a component type at registration time.
type RegisterOption func(*registerConfig)

// AsSingleton marks the type as a singleton component: at most one alive
// entity in a world may carry it at a time (see SetSingleton).
func AsSingleton() RegisterOption {
	return func(c *registerConfig) { c.singleton = true }
}

// Component is a type-safe handle to a registered component type, returned
// by Register and used by every typed storage, query and filter operation.
// It carries no per-world state; the same handle is reused across worlds.
type Component[T any] struct {
	desc *typeDescriptor
}

// TypeID returns the stable string id the type was registered under.
func (c Component[T]) TypeID() TypeID { return c.desc.id }

// index is the bit position assigned to this type for presence masks.
func (c Component[T]) index() int { return c.desc.index }

// IsSingleton reports whether this type carries the at-most-one-owner
// invariant.
func (c Component[T]) IsSingleton() bool { return c.desc.singleton }

// Register records a new component type in the process-wide registry.
// Registration is expected to happen once at startup (by hand or by
// generated bootstrap code); registering the same stable id twice, or
// exceeding query.MaxComponentTypes distinct types, is a programming error
// and panics rather than returning a runtime error that callers would have
// to thread through every AddComponent call site.
func Register[T any](id TypeID, opts ...RegisterOption) Component[T] {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registryByID[id]; exists {
		panic(fmt.Sprintf("ecs: component type %q already registered", id))
	}
	if len(registryByIndex) >= query.MaxComponentTypes {
		panic(fmt.Sprintf("ecs: cannot register %q: exceeded MaxComponentTypes (%d)", id, query.MaxComponentTypes))
	}

	cfg := registerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	desc := &typeDescriptor{
		id:        id,
		index:     len(registryByIndex),
		singleton: cfg.singleton,
	}
	desc.newPool = func() anyPool { return newPool[T](desc) }

	registryByID[id] = desc
	registryByIndex = append(registryByIndex, desc)
	return Component[T]{desc: desc}
}

// lookupDescriptor resolves a stable id to its registration record. Used by
// the snapshot reader, which only has the string id from the stream.
func lookupDescriptor(id TypeID) (*typeDescriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registryByID[id]
	return d, ok
}

// registeredDescriptors returns a stable-ordered snapshot of every
// registered type, used when building a fresh World's pool set.
func registeredDescriptors() []*typeDescriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*typeDescriptor, len(registryByIndex))
	copy(out, registryByIndex)
	return out
}

// ComponentInfo is the boxed, reflection-free description of a registered
// type, returned by introspection APIs (GetAllComponents, GetAllSingletons).
type ComponentInfo struct {
	TypeID    TypeID
	Singleton bool
}
