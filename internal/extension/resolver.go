package extension

import (
	"errors"
	"fmt"
	"regexp"
)

// Resolver turns an extension id into a fresh unit. A Resolver that has
// no unit for id returns an error matching ErrNotFound.
type Resolver interface {
	Resolve(id string) (Unit, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(id string) (Unit, error)

// Resolve calls f(id).
func (f ResolverFunc) Resolve(id string) (Unit, error) {
	return f(id)
}

// Factory creates a new instance of a built-in unit.
type Factory func() (Unit, error)

// Builtins resolves ids of units compiled into the binary.
type Builtins map[string]Factory

// Resolve creates a new instance of the built-in id.
func (b Builtins) Resolve(id string) (Unit, error) {
	f, ok := b[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f()
}

// Chain tries each resolver in order. A not-found result falls through to
// the next resolver; any other error stops the search.
type Chain []Resolver

// Resolve returns the first unit found for id.
func (c Chain) Resolve(id string) (Unit, error) {
	for _, r := range c {
		u, err := r.Resolve(id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// idPattern matches ids that can name a file or directory.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

// ValidID reports whether id can name an extension.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
