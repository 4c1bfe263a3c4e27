// Package options parses calibration options from the command line and
// config files and applies them to a session.
package options

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Handler validates one option value and applies it. It returns a message
// describing what was applied.
type Handler func(ctx context.Context, value string) (string, error)

// Entry is a registered option.
type Entry struct {
	Handler Handler
	Usage   string // value syntax, e.g. "=COUNT"
	Help    string
}

// Registry maps option keys to their entries. Keys are dispatched in
// registration order.
type Registry struct {
	keys    []string
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry. Registering a key twice replaces the entry but
// keeps its original position.
func (r *Registry) Register(key string, e Entry) {
	if _, ok := r.entries[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.entries[key] = e
}

// Lookup returns the entry for key. Matching is exact and case-sensitive.
func (r *Registry) Lookup(key string) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Keys returns the registered keys in dispatch order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Dispatch applies values in registration order and writes each handler's
// message to out. Unknown keys are reported and skipped. The first handler
// error stops the dispatch.
func (r *Registry) Dispatch(ctx context.Context, values Values, out io.Writer) error {
	for _, key := range r.keys {
		value, ok := values[key]
		if !ok {
			continue
		}
		msg, err := r.entries[key].Handler(ctx, value)
		if err != nil {
			return err
		}
		if msg != "" {
			fmt.Fprint(out, msg)
		}
	}

	var unknown []string
	for key := range values {
		if _, ok := r.entries[key]; !ok && key != "" {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		fmt.Fprintf(out, "%-*s%s\n", messageWidth, "Unknown option:", key)
	}
	return nil
}

// Usage writes every option with its syntax and help text.
func (r *Registry) Usage(w io.Writer, program string) {
	fmt.Fprintf(w, "Usage: %s [OPTIONS]\nOptions:\n", program)
	for _, key := range r.keys {
		e := r.entries[key]
		fmt.Fprintf(w, "  --%-*s%s\n", optionWidth, key+e.Usage, e.Help)
	}
}
