package domain

import (
	"iter"
	"slices"
)

// Parameter is a configuration value declared by a document together with
// the line that declared it.
type Parameter struct {
	Name    string
	Default any
	Line    int
	// Source is the declaration text the default was evaluated from.
	Source string
}

// ParameterSet is an ordered mapping from parameter name to default value.
type ParameterSet struct {
	params []Parameter
	index  map[string]int
}

// NewParameterSet creates an empty parameter set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{index: make(map[string]int)}
}

// Declare adds a parameter. Redeclaring a name replaces its default and line
// but keeps its original position.
func (p *ParameterSet) Declare(param Parameter) {
	if i, ok := p.index[param.Name]; ok {
		p.params[i] = param
		return
	}
	p.index[param.Name] = len(p.params)
	p.params = append(p.params, param)
}

// Has reports whether name is a declared parameter.
func (p *ParameterSet) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Default returns the default for name.
func (p *ParameterSet) Default(name string) (any, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.params[i].Default, true
}

// Len returns the number of parameters.
func (p *ParameterSet) Len() int { return len(p.params) }

// Names returns the parameter names in declaration order.
func (p *ParameterSet) Names() []string {
	names := make([]string, len(p.params))
	for i, param := range p.params {
		names[i] = param.Name
	}
	return names
}

// Parameters returns a copy of the declared parameters in order.
func (p *ParameterSet) Parameters() []Parameter { return slices.Clone(p.params) }

// All iterates over name and default pairs in declaration order.
func (p *ParameterSet) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, param := range p.params {
			if !yield(param.Name, param.Default) {
				return
			}
		}
	}
}
