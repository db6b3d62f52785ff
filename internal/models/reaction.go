package models

import "slices"

// Reaction is an aggregated emoji reaction on a message.
// Invariant: Count == len(Reactors), каждый участник встречается не более одного раза.
type Reaction struct {
	Emoji    string   `json:"emoji"`
	Reactors []string `json:"reactors"`
	Count    int      `json:"count"`
}

// Clone создает глубокую копию реакции
func (r Reaction) Clone() Reaction {
	c := r
	if r.Reactors != nil {
		c.Reactors = slices.Clone(r.Reactors)
	}
	return c
}

// Valid reports whether the reaction satisfies the count invariant.
func (r Reaction) Valid() bool {
	if r.Count != len(r.Reactors) {
		return false
	}
	seen := make(map[string]struct{}, len(r.Reactors))
	for _, id := range r.Reactors {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

// NormalizeReactions rebuilds a reaction list received from the outside so that every
// entry satisfies the invariant: duplicate reactors are dropped, counts are recomputed
// and empty reactions removed.
func NormalizeReactions(in []Reaction) []Reaction {
	if len(in) == 0 {
		return nil
	}

	out := make([]Reaction, 0, len(in))
	byEmoji := make(map[string]int, len(in))
	for _, r := range in {
		idx, ok := byEmoji[r.Emoji]
		if !ok {
			out = append(out, Reaction{Emoji: r.Emoji})
			idx = len(out) - 1
			byEmoji[r.Emoji] = idx
		}
		for _, id := range r.Reactors {
			if !slices.Contains(out[idx].Reactors, id) {
				out[idx].Reactors = append(out[idx].Reactors, id)
			}
		}
		out[idx].Count = len(out[idx].Reactors)
	}

	out = slices.DeleteFunc(out, func(r Reaction) bool { return r.Count == 0 })
	if len(out) == 0 {
		return nil
	}
	return out
}
