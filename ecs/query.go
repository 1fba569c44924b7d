package ecs

import (
	"time"

	"github.com/zecs-dev/zecs/ecs/query"
)

// QueryFilter is a type-safe wrapper over query.Filter: the With/Without
// helpers take Component[T] handles instead of raw bit positions, so a
// filter can never reference an index that doesn't correspond to a
// registered type.
type QueryFilter struct {
	f query.Filter
}

// NewQueryFilter starts an empty, match-everything filter.
func NewQueryFilter() QueryFilter { return QueryFilter{f: query.New()} }

func With[T any](q QueryFilter, c Component[T]) QueryFilter {
	return QueryFilter{f: q.f.With(c.index())}
}

func Without[T any](q QueryFilter, c Component[T]) QueryFilter {
	return QueryFilter{f: q.f.Without(c.index())}
}

// WithAny requires the entity to carry at least one of the given types.
// Each call adds one more AND-ed OR-group to the filter.
func WithAny(q QueryFilter, cs ...interface{ index() int }) QueryFilter {
	bits := make([]int, len(cs))
	for i, c := range cs {
		bits[i] = c.index()
	}
	return QueryFilter{f: q.f.WithAny(bits...)}
}

// WithoutAny excludes entities that carry any of the given types.
func WithoutAny(q QueryFilter, cs ...interface{ index() int }) QueryFilter {
	bits := make([]int, len(cs))
	for i, c := range cs {
		bits[i] = c.index()
	}
	return QueryFilter{f: q.f.WithoutAny(bits...)}
}

func (q QueryFilter) matches(presence query.Mask) bool { return q.f.Match(presence) }

// Query1 yields every live entity carrying c1 and matching filter (if
// given), together with a pointer into c1's pool. The pointer is only
// valid until the next structural change.
func Query1[A any](w *World, c1 Component[A], filters ...QueryFilter) func(yield func(Entity, *A) bool) {
	return func(yield func(Entity, *A) bool) {
		start := time.Now()
		defer func() {
			w.metrics.ObserveQueryDuration(w.id.String(), string(c1.TypeID()), time.Since(start).Seconds())
		}()
		p1 := pool(w, c1)
		for i := 0; i < p1.count(); i++ {
			e := p1.denseEntityAt(i)
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, p1.valueAt(i)) {
				return
			}
		}
	}
}

// Query2 yields entities carrying both c1 and c2, anchored on whichever
// pool currently has fewer entries.
func Query2[A, B any](w *World, c1 Component[A], c2 Component[B], filters ...QueryFilter) func(yield func(Entity, *A, *B) bool) {
	return func(yield func(Entity, *A, *B) bool) {
		start := time.Now()
		defer func() {
			w.metrics.ObserveQueryDuration(w.id.String(), string(c1.TypeID())+"+"+string(c2.TypeID()), time.Since(start).Seconds())
		}()
		pA, pB := pool(w, c1), pool(w, c2)
		anchor := pA
		if pB.count() < pA.count() {
			anchor = pB
		}
		for i := 0; i < anchor.count(); i++ {
			e := anchor.denseEntityAt(i)
			va, ok := pA.get(e)
			if !ok {
				continue
			}
			vb, ok := pB.get(e)
			if !ok {
				continue
			}
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, va, vb) {
				return
			}
		}
	}
}

// Query3 yields entities carrying c1, c2 and c3.
func Query3[A, B, C any](w *World, c1 Component[A], c2 Component[B], c3 Component[C], filters ...QueryFilter) func(yield func(Entity, *A, *B, *C) bool) {
	return func(yield func(Entity, *A, *B, *C) bool) {
		pA, pB, pC := pool(w, c1), pool(w, c2), pool(w, c3)
		anchor := smallestAnchor(pA, pB, pC)
		for i := 0; i < anchor.count(); i++ {
			e := anchor.denseEntityAt(i)
			va, ok := pA.get(e)
			if !ok {
				continue
			}
			vb, ok := pB.get(e)
			if !ok {
				continue
			}
			vc, ok := pC.get(e)
			if !ok {
				continue
			}
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, va, vb, vc) {
				return
			}
		}
	}
}

// Query4 yields entities carrying all four of c1..c4.
func Query4[A, B, C, D any](w *World, c1 Component[A], c2 Component[B], c3 Component[C], c4 Component[D], filters ...QueryFilter) func(yield func(Entity, *A, *B, *C, *D) bool) {
	return func(yield func(Entity, *A, *B, *C, *D) bool) {
		pA, pB, pC, pD := pool(w, c1), pool(w, c2), pool(w, c3), pool(w, c4)
		anchor := smallestAnchor(pA, pB, pC, pD)
		for i := 0; i < anchor.count(); i++ {
			e := anchor.denseEntityAt(i)
			va, ok := pA.get(e)
			if !ok {
				continue
			}
			vb, ok := pB.get(e)
			if !ok {
				continue
			}
			vc, ok := pC.get(e)
			if !ok {
				continue
			}
			vd, ok := pD.get(e)
			if !ok {
				continue
			}
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, va, vb, vc, vd) {
				return
			}
		}
	}
}

// smallestAnchor picks whichever pool currently holds the fewest entries,
// so a query anchored on it never walks more rows than the rarest of its
// required types. Pools of differing value types are compared through the
// shared anyPool surface rather than a type parameter, since a single
// generic can't range over *Pool[A], *Pool[B], *Pool[C] at once.
func smallestAnchor(pools ...anyPool) anyPool {
	best := pools[0]
	for _, p := range pools[1:] {
		if p.count() < best.count() {
			best = p
		}
	}
	return best
}

func matchAll(w *World, e Entity, filters []QueryFilter) bool {
	if len(filters) == 0 {
		return true
	}
	presence := w.presenceOf(e)
	for _, f := range filters {
		if !f.matches(presence) {
			return false
		}
	}
	return true
}

// QueryToSpan1 fills dst (caller-owned, pre-sized) with matching entities
// for c1 and returns the count actually written; it never allocates and
// stops as soon as dst is full, even if more entities would match.
func QueryToSpan1[A any](w *World, c1 Component[A], dst []Entity, filters ...QueryFilter) int {
	p1 := pool(w, c1)
	n := 0
	for i := 0; i < p1.count() && n < len(dst); i++ {
		e := p1.denseEntityAt(i)
		if !matchAll(w, e, filters) {
			continue
		}
		dst[n] = e
		n++
	}
	return n
}

// QueryToSpanN fills dst with entities carrying every one of the given
// required types (plus filters), using whichever pool has fewest entries
// as the iteration anchor — the same anchoring Query2..Query8 use. Exposed
// for callers that need a multi-type span without per-entity pointers.
func QueryToSpanN(w *World, dst []Entity, required []anyPool, filters ...QueryFilter) int {
	if len(required) == 0 {
		return 0
	}
	anchor := smallestAnchor(required...)
	n := 0
	for i := 0; i < anchor.count() && n < len(dst); i++ {
		e := anchor.denseEntityAt(i)
		ok := true
		for _, p := range required {
			if !p.has(e) {
				ok = false
				break
			}
		}
		if !ok || !matchAll(w, e, filters) {
			continue
		}
		dst[n] = e
		n++
	}
	return n
}

// Process is QueryToSpan's companion: given a caller-supplied entity list
// (typically just filled by QueryToSpan1), it calls fn(e, &v) for each
// entity that is alive and still carries c1, skipping the rest silently —
// entities can die or lose the component between the span being filled and
// Process running. fn may mutate *A in place; Process performs no
// structural changes itself, so call it outside a read-only phase.
func Process[A any](w *World, c1 Component[A], entities []Entity, fn func(Entity, *A)) error {
	if w.sched.currentPhase.IsReadOnly() {
		return newErr(ErrInvalidPhase, "Process called during read-only phase")
	}
	p1 := pool(w, c1)
	for _, e := range entities {
		if !w.entities.isAlive(e) {
			continue
		}
		v, ok := p1.get(e)
		if !ok {
			continue
		}
		fn(e, v)
	}
	return nil
}

// Query5 yields entities carrying all 5 of c1..c5.
func Query5[A any, B any, C any, D any, E any](w *World, c1 Component[A], c2 Component[B], c3 Component[C], c4 Component[D], c5 Component[E], filters ...QueryFilter) func(yield func(Entity, *A, *B, *C, *D, *E) bool) {
	return func(yield func(Entity, *A, *B, *C, *D, *E) bool) {
		pA, pB, pC, pD, pE := pool(w, c1), pool(w, c2), pool(w, c3), pool(w, c4), pool(w, c5)
		anchor := smallestAnchor(pA, pB, pC, pD, pE)
		for i := 0; i < anchor.count(); i++ {
			e := anchor.denseEntityAt(i)
			vA, ok := pA.get(e)
			if !ok {
				continue
			}
			vB, ok := pB.get(e)
			if !ok {
				continue
			}
			vC, ok := pC.get(e)
			if !ok {
				continue
			}
			vD, ok := pD.get(e)
			if !ok {
				continue
			}
			vE, ok := pE.get(e)
			if !ok {
				continue
			}
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, vA, vB, vC, vD, vE) {
				return
			}
		}
	}
}

// Query6 yields entities carrying all 6 of c1..c6.
func Query6[A any, B any, C any, D any, E any, F any](w *World, c1 Component[A], c2 Component[B], c3 Component[C], c4 Component[D], c5 Component[E], c6 Component[F], filters ...QueryFilter) func(yield func(Entity, *A, *B, *C, *D, *E, *F) bool) {
	return func(yield func(Entity, *A, *B, *C, *D, *E, *F) bool) {
		pA, pB, pC, pD, pE, pF := pool(w, c1), pool(w, c2), pool(w, c3), pool(w, c4), pool(w, c5), pool(w, c6)
		anchor := smallestAnchor(pA, pB, pC, pD, pE, pF)
		for i := 0; i < anchor.count(); i++ {
			e := anchor.denseEntityAt(i)
			vA, ok := pA.get(e)
			if !ok {
				continue
			}
			vB, ok := pB.get(e)
			if !ok {
				continue
			}
			vC, ok := pC.get(e)
			if !ok {
				continue
			}
			vD, ok := pD.get(e)
			if !ok {
				continue
			}
			vE, ok := pE.get(e)
			if !ok {
				continue
			}
			vF, ok := pF.get(e)
			if !ok {
				continue
			}
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, vA, vB, vC, vD, vE, vF) {
				return
			}
		}
	}
}

// Query7 yields entities carrying all 7 of c1..c7.
func Query7[A any, B any, C any, D any, E any, F any, G any](w *World, c1 Component[A], c2 Component[B], c3 Component[C], c4 Component[D], c5 Component[E], c6 Component[F], c7 Component[G], filters ...QueryFilter) func(yield func(Entity, *A, *B, *C, *D, *E, *F, *G) bool) {
	return func(yield func(Entity, *A, *B, *C, *D, *E, *F, *G) bool) {
		pA, pB, pC, pD, pE, pF, pG := pool(w, c1), pool(w, c2), pool(w, c3), pool(w, c4), pool(w, c5), pool(w, c6), pool(w, c7)
		anchor := smallestAnchor(pA, pB, pC, pD, pE, pF, pG)
		for i := 0; i < anchor.count(); i++ {
			e := anchor.denseEntityAt(i)
			vA, ok := pA.get(e)
			if !ok {
				continue
			}
			vB, ok := pB.get(e)
			if !ok {
				continue
			}
			vC, ok := pC.get(e)
			if !ok {
				continue
			}
			vD, ok := pD.get(e)
			if !ok {
				continue
			}
			vE, ok := pE.get(e)
			if !ok {
				continue
			}
			vF, ok := pF.get(e)
			if !ok {
				continue
			}
			vG, ok := pG.get(e)
			if !ok {
				continue
			}
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, vA, vB, vC, vD, vE, vF, vG) {
				return
			}
		}
	}
}

// Query8 yields entities carrying all 8 of c1..c8.
func Query8[A any, B any, C any, D any, E any, F any, G any, H any](w *World, c1 Component[A], c2 Component[B], c3 Component[C], c4 Component[D], c5 Component[E], c6 Component[F], c7 Component[G], c8 Component[H], filters ...QueryFilter) func(yield func(Entity, *A, *B, *C, *D, *E, *F, *G, *H) bool) {
	return func(yield func(Entity, *A, *B, *C, *D, *E, *F, *G, *H) bool) {
		pA, pB, pC, pD, pE, pF, pG, pH := pool(w, c1), pool(w, c2), pool(w, c3), pool(w, c4), pool(w, c5), pool(w, c6), pool(w, c7), pool(w, c8)
		anchor := smallestAnchor(pA, pB, pC, pD, pE, pF, pG, pH)
		for i := 0; i < anchor.count(); i++ {
			e := anchor.denseEntityAt(i)
			vA, ok := pA.get(e)
			if !ok {
				continue
			}
			vB, ok := pB.get(e)
			if !ok {
				continue
			}
			vC, ok := pC.get(e)
			if !ok {
				continue
			}
			vD, ok := pD.get(e)
			if !ok {
				continue
			}
			vE, ok := pE.get(e)
			if !ok {
				continue
			}
			vF, ok := pF.get(e)
			if !ok {
				continue
			}
			vG, ok := pG.get(e)
			if !ok {
				continue
			}
			vH, ok := pH.get(e)
			if !ok {
				continue
			}
			if !matchAll(w, e, filters) {
				continue
			}
			if !yield(e, vA, vB, vC, vD, vE, vF, vG, vH) {
				return
			}
		}
	}
}
