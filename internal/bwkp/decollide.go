package bwkp

// collisionSuffix is appended each time a candidate name collides. Repeated
// collisions chain the suffix ("-1-1"), they never count up.
const collisionSuffix = "-1"

// NameSet is a set of names scoped to one entry.
type NameSet map[string]struct{}

// NewNameSet returns a set holding names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name into the set.
func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

// Decollide returns candidate, suffixed until it is neither reserved nor
// already used, and records the result in used.
func Decollide(candidate string, reserved, used NameSet) string {
	name := candidate
	for reserved.Has(name) || used.Has(name) {
		name += collisionSuffix
	}
	used.Add(name)
	return name
}
