package command

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/dshills/mudcore/internal/session"
)

// Handler runs a command.
type Handler func(inv *Invocation) error

// Invocation is everything a handler receives about one command call.
type Invocation struct {
	// Name is the command's registered name, not the prefix typed.
	Name     string
	Args     Args
	Raw      string
	Internal bool
	Session  *session.Session
}

// Command binds a name to a handler and its argument spec. A nil Spec
// means the handler parses Raw itself.
type Command struct {
	Name    string
	Handler Handler
	Spec    *Spec
	// Source is the id of the extension that registered the command.
	Source string
	Help   string
}

// Usage returns the command's usage line.
func (c *Command) Usage() string {
	if c.Spec == nil {
		return c.Name + " [args...]"
	}
	return c.Spec.Usage(c.Name)
}

// Registry maps command names to commands. Names are unique.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Add binds cmd.Name. It fails with DuplicateCommandError if the name is
// already bound; the existing binding is kept.
func (r *Registry) Add(cmd Command) error {
	if cmd.Name == "" || strings.ContainsAny(cmd.Name, " \t\r\n") {
		return ErrInvalidName
	}
	if cmd.Handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.commands[cmd.Name]; ok {
		return &DuplicateCommandError{Name: cmd.Name, Owner: existing.Source}
	}
	c := cmd
	r.commands[cmd.Name] = &c
	return nil
}

// Remove unbinds name. It fails with UnknownCommandError if absent.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[name]; !ok {
		return &UnknownCommandError{Name: name}
	}
	delete(r.commands, name)
	return nil
}

// Lookup returns the command bound to exactly name.
func (r *Registry) Lookup(name string) (*Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.commands[name]; ok {
		return c, nil
	}
	return nil, &UnknownCommandError{Name: name, Suggestions: r.suggest(name)}
}

// Resolve finds a command by exact name or, failing that, by unique
// prefix.
func (r *Registry) Resolve(name string) (*Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.commands[name]; ok {
		return c, nil
	}

	var matches []string
	for n := range r.commands {
		if strings.HasPrefix(n, name) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, &UnknownCommandError{Name: name, Suggestions: r.suggest(name)}
	case 1:
		return r.commands[matches[0]], nil
	default:
		sort.Strings(matches)
		return nil, &AmbiguousCommandError{Prefix: name, Matches: matches}
	}
}

// Has reports whether name is bound.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[name]
	return ok
}

// List returns all commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BySource returns the sorted names of the commands registered by source.
func (r *Registry) BySource(source string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for n, c := range r.commands {
		if c.Source == source {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// RemoveNames unbinds each listed name that is still owned by source and
// returns the names actually removed. Names rebound by another source in
// the meantime are left alone.
func (r *Registry) RemoveNames(source string, names []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, n := range names {
		if c, ok := r.commands[n]; ok && c.Source == source {
			delete(r.commands, n)
			removed = append(removed, n)
		}
	}
	return removed
}

// RemoveBySource unbinds every command registered by source and returns
// the removed names.
func (r *Registry) RemoveBySource(source string) []string {
	return r.RemoveNames(source, r.BySource(source))
}

// Count returns the number of bound names.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

const maxSuggestions = 3

// suggest returns up to maxSuggestions names within edit distance 2 of
// name, closest first. Callers hold the lock.
func (r *Registry) suggest(name string) []string {
	type candidate struct {
		name string
		dist int
	}
	var cands []candidate
	for n := range r.commands {
		if d := levenshtein.ComputeDistance(name, n); d <= 2 {
			cands = append(cands, candidate{n, d})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].name < cands[j].name
	})

	var out []string
	for i := 0; i < len(cands) && i < maxSuggestions; i++ {
		out = append(out, cands[i].name)
	}
	return out
}
