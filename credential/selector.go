package credential

import "math/rand"

// Selector chooses one credential from a set of equivalent credentials.
type Selector interface {
	// Pick returns one element of set, or an empty string if set is empty.
	Pick(set []string) string
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(set []string) string

// Pick calls fn(set), unless set is empty.
func (fn SelectorFunc) Pick(set []string) string {
	if len(set) == 0 {
		return ""
	}

	return fn(set)
}

// Random is the default Selector. It picks an index uniformly at random.
var Random Selector = SelectorFunc(func(set []string) string {
	return set[rand.Intn(len(set))]
})
