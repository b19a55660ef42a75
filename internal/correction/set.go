package correction

import "sort"

// Set is an insertion-ordered collection of corrections, unique by ID.
// It is not safe for concurrent use; the owning document serializes access.
type Set struct {
	order []string
	byID  map[string]Correction
}

// NewSet returns a set holding cs. Later duplicates of an ID are dropped.
func NewSet(cs ...Correction) *Set {
	s := &Set{byID: make(map[string]Correction, len(cs))}
	s.Replace(cs)
	return s
}

// Len returns the number of pending corrections.
func (s *Set) Len() int { return len(s.order) }

// Empty reports whether the set has no members.
func (s *Set) Empty() bool { return len(s.order) == 0 }

// Get looks a correction up by ID.
func (s *Set) Get(id string) (Correction, bool) {
	c, ok := s.byID[id]
	if !ok {
		return Correction{}, false
	}
	return c.Clone(), true
}

// Add appends c unless its ID is already present.
func (s *Set) Add(c Correction) bool {
	if _, ok := s.byID[c.ID]; ok {
		return false
	}
	s.order = append(s.order, c.ID)
	s.byID[c.ID] = c.Clone()
	return true
}

// Remove deletes the correction with the given ID.
func (s *Set) Remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Replace swaps the whole membership for cs.
func (s *Set) Replace(cs []Correction) {
	s.order = s.order[:0]
	s.byID = make(map[string]Correction, len(cs))
	for _, c := range cs {
		s.Add(c)
	}
}

// Clear removes every member and returns how many there were.
func (s *Set) Clear() int {
	n := len(s.order)
	s.order = nil
	s.byID = make(map[string]Correction)
	return n
}

// List returns copies of the members in insertion order.
func (s *Set) List() []Correction {
	out := make([]Correction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// ByOffsetDesc returns the members sorted by anchor offset, highest first.
// Ties keep insertion order.
func ByOffsetDesc(cs []Correction) []Correction {
	out := append([]Correction(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Anchor.Offset > out[j].Anchor.Offset
	})
	return out
}
