package query

// Filter is an immutable, composable query filter over component-type bit
// positions. Build one with New and the With/Without/WithAny/WithoutAny
// methods, each of which returns a new Filter value; the receiver is never
// mutated.
//
// Multiple WithAny groups combine by AND-of-ORs: an entity must satisfy
// Required, must avoid every bit in Excluded, and for every entry in
// AnyGroups must carry at least one of that group's bits.
type Filter struct {
	Required  Mask
	Excluded  Mask
	AnyGroups []Mask
}

// New returns the empty filter (matches everything).
func New() Filter {
	return Filter{}
}

// With returns a filter requiring bit i in addition to the receiver's
// existing requirements.
func (f Filter) With(i int) Filter {
	f.Required = f.Required.Set(i)
	return f
}

// Without returns a filter excluding bit i in addition to the receiver's
// existing exclusions.
func (f Filter) Without(i int) Filter {
	f.Excluded = f.Excluded.Set(i)
	return f
}

// WithAny adds a disjunction group: the entity must carry at least one of
// the given bits. Each call to WithAny adds a new group; groups combine by
// logical AND.
func (f Filter) WithAny(bits ...int) Filter {
	var group Mask
	for _, b := range bits {
		group = group.Set(b)
	}
	groups := make([]Mask, len(f.AnyGroups), len(f.AnyGroups)+1)
	copy(groups, f.AnyGroups)
	f.AnyGroups = append(groups, group)
	return f
}

// WithoutAny excludes every bit in the given set (entity must lack all of
// them), equivalent to calling Without for each bit.
func (f Filter) WithoutAny(bits ...int) Filter {
	for _, b := range bits {
		f.Excluded = f.Excluded.Set(b)
	}
	return f
}

// Match reports whether a presence mask satisfies the filter.
func (f Filter) Match(presence Mask) bool {
	if !presence.ContainsAll(f.Required) {
		return false
	}
	if presence.Intersects(f.Excluded) {
		return false
	}
	for _, group := range f.AnyGroups {
		if !presence.Intersects(group) {
			return false
		}
	}
	return true
}

// RequiredBits is the union of Required and every AnyGroup's bits. The ecs
// query functions do not call it: they anchor iteration on the smallest of
// their own typed component pools only, and filter types never become the
// anchor.
func (f Filter) RequiredBits() Mask {
	m := f.Required
	for _, g := range f.AnyGroups {
		m[0] |= g[0]
		for i := 1; i < len(m); i++ {
			m[i] |= g[i]
		}
	}
	return m
}
