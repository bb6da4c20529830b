package lists

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fenilsonani/listmunge/internal/config"
	"github.com/fenilsonani/listmunge/internal/validation"
)

var (
	ErrListNotFound  = errors.New("list not found")
	ErrDuplicateList = errors.New("duplicate list")
)

// Registry looks lists up by name or List-Id and numbers their posts.
type Registry struct {
	byName map[string]*List
	byID   map[string]*List
	seq    Sequence
}

// NewRegistry builds a registry over lists. A nil seq leaves post ids
// unknown, which disables numbered prefixes.
func NewRegistry(lists []*List, seq Sequence) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*List, len(lists)),
		byID:   make(map[string]*List, len(lists)),
		seq:    seq,
	}
	for _, l := range lists {
		if _, ok := r.byName[l.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateList, l.Name)
		}
		r.byName[l.Name] = l
		if l.ListID != "" {
			if _, ok := r.byID[l.ListID]; ok {
				return nil, fmt.Errorf("%w: list id %s", ErrDuplicateList, l.ListID)
			}
			r.byID[l.ListID] = l
		}
	}
	return r, nil
}

// RegistryFromConfig builds a registry from the configured lists.
func RegistryFromConfig(cfgs []config.ListConfig, seq Sequence) (*Registry, error) {
	lists := make([]*List, 0, len(cfgs))
	for _, c := range cfgs {
		lists = append(lists, FromConfig(c))
	}
	return NewRegistry(lists, seq)
}

// Get returns a copy of the named list.
func (r *Registry) Get(name string) (*List, error) {
	l, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, name)
	}
	return l.Clone(), nil
}

// ByListID returns a copy of the list with the given List-Id. The id may
// carry a phrase and angle brackets.
func (r *Registry) ByListID(id string) (*List, error) {
	l, ok := r.byID[validation.BareListID(id)]
	if !ok {
		return nil, fmt.Errorf("%w: list id %s", ErrListNotFound, id)
	}
	return l.Clone(), nil
}

// Find returns a copy of the list named key, or failing that the list
// whose List-Id is key.
func (r *Registry) Find(key string) (*List, error) {
	if l, err := r.Get(key); err == nil {
		return l, nil
	}
	l, err := r.ByListID(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, key)
	}
	return l, nil
}

// Lists returns copies of all lists sorted by name.
func (r *Registry) Lists() []*List {
	out := make([]*List, 0, len(r.byName))
	for _, l := range r.byName {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sequence returns the registry's sequence store, which may be nil.
func (r *Registry) Sequence() Sequence {
	return r.seq
}

// Resolve returns a copy of the named list with its current post id. The
// sequence is seeded from the configured post id, or 1, on first use.
func (r *Registry) Resolve(ctx context.Context, name string) (*List, error) {
	l, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if r.seq == nil {
		return l, nil
	}

	start := l.PostID
	if start <= 0 {
		start = 1
	}
	if err := r.seq.Init(ctx, l.Name, start); err != nil {
		return nil, err
	}
	n, err := r.seq.Current(ctx, l.Name)
	if err != nil {
		return nil, err
	}
	l.PostID = n
	l.PostIDKnown = true
	return l, nil
}

// Advance moves the named list to its next post id and returns it.
func (r *Registry) Advance(ctx context.Context, name string) (int, error) {
	if _, ok := r.byName[name]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrListNotFound, name)
	}
	if r.seq == nil {
		return 0, ErrNoSequence
	}
	return r.seq.Next(ctx, name)
}
