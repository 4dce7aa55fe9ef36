package assets

import (
	"slices"
)

// Strategy decides which of two imports of the same file survives in a list.
type Strategy int

const (
	// FirstOneWins keeps the earliest position. Scripts use it: globals
	// should be defined as early as possible.
	FirstOneWins Strategy = iota

	// LastOneWins keeps the latest position. Styles use it: the last rule
	// wins in CSS anyway.
	LastOneWins
)

func (s Strategy) String() string {
	if s == LastOneWins {
		return "last"
	}
	return "first"
}

// place adds p to list according to the strategy. It returns the new list
// and whether p was already present.
//
// A new path is prepended or appended as requested. A present path is moved
// when the request would put it on the winning side (front for
// FirstOneWins, back for LastOneWins); otherwise the call changes nothing.
func (s Strategy) place(list []string, p string, prepend bool) ([]string, bool) {
	i := slices.Index(list, p)
	if i >= 0 {
		moves := (s == FirstOneWins && prepend) || (s == LastOneWins && !prepend)
		if !moves {
			return list, true
		}
		list = slices.Delete(list, i, i+1)
	}

	if prepend {
		return slices.Insert(list, 0, p), i >= 0
	}
	return append(list, p), i >= 0
}
