package domain

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Well-known bindings seeded into every module namespace.
const (
	NameBinding = "__name__"
	FileBinding = "__file__"
	DocBinding  = "__doc__"
)

// Namespace is the set of bindings a unit executes against. Unlike the
// immutable values elsewhere in this package a Namespace is mutated in place
// by execution, and it remembers the order in which names were first bound.
//
// A Namespace is owned by exactly one execution at a time and is not safe
// for concurrent use.
type Namespace struct {
	order []string
	data  map[string]any
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{data: make(map[string]any)}
}

// NewModuleNamespace creates a namespace seeded with the identity bindings
// of a module: its name and the path it was loaded from.
func NewModuleNamespace(name, path string) *Namespace {
	ns := NewNamespace()
	ns.Set(NameBinding, name)
	ns.Set(FileBinding, path)
	return ns
}

// Get returns the value bound to name.
func (n *Namespace) Get(name string) (any, bool) {
	v, ok := n.data[name]
	return v, ok
}

// Has reports whether name is bound.
func (n *Namespace) Has(name string) bool {
	_, ok := n.data[name]
	return ok
}

// Set binds name to value, keeping the original position of a rebound name.
func (n *Namespace) Set(name string, value any) {
	if _, ok := n.data[name]; !ok {
		n.order = append(n.order, name)
	}
	n.data[name] = value
}

// Delete removes a binding. Deleting an unbound name is a no-op.
func (n *Namespace) Delete(name string) {
	if _, ok := n.data[name]; !ok {
		return
	}
	delete(n.data, name)
	n.order = slices.DeleteFunc(n.order, func(k string) bool { return k == name })
}

// Len returns the number of bindings.
func (n *Namespace) Len() int { return len(n.data) }

// Keys returns the bound names in binding order. The slice is a copy.
func (n *Namespace) Keys() []string { return slices.Clone(n.order) }

// All iterates over the bindings in binding order.
func (n *Namespace) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range n.order {
			if !yield(k, n.data[k]) {
				return
			}
		}
	}
}

// Merge binds every entry of values, in the iteration order of values.
func (n *Namespace) Merge(values iter.Seq2[string, any]) {
	for k, v := range values {
		n.Set(k, v)
	}
}

// Clone returns a shallow copy. Values themselves are shared.
func (n *Namespace) Clone() *Namespace {
	return &Namespace{
		order: slices.Clone(n.order),
		data:  maps.Clone(n.data),
	}
}

// String returns a debugging representation of the namespace.
func (n *Namespace) String() string {
	var b strings.Builder
	b.WriteString("Namespace{")
	for i, k := range n.order {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, n.data[k])
	}
	b.WriteString("}")
	return b.String()
}
