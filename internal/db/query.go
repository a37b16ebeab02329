package db

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateParameter is returned when a parameter name is added twice.
var ErrDuplicateParameter = errors.New("duplicate query parameter")

// Param is a named query parameter.
type Param struct {
	Name  string
	Value any
}

// Query is a command text plus its named parameters in insertion order.
// A Query describes one execution and is not meant to be reused.
type Query struct {
	Text   string
	params []Param
}

// NewQuery creates a query without parameters.
func NewQuery(text string) *Query {
	return &Query{Text: text}
}

// Add appends a parameter and returns the query for chaining.
// It panics if the name is already present; use TryAdd to get an error instead.
func (q *Query) Add(name string, value any) *Query {
	if err := q.TryAdd(name, value); err != nil {
		panic(err)
	}
	return q
}

// TryAdd appends a parameter. A leading '@', ':' or '$' is stripped so that
// "@version" and "version" refer to the same parameter.
func (q *Query) TryAdd(name string, value any) error {
	name = NormalizeParamName(name)
	if name == "" {
		return fmt.Errorf("query parameter name is empty")
	}
	for _, p := range q.params {
		if p.Name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
		}
	}
	q.params = append(q.params, Param{Name: name, Value: value})
	return nil
}

// Params returns a copy of the parameters in the order they were added.
func (q *Query) Params() []Param {
	out := make([]Param, len(q.params))
	copy(out, q.params)
	return out
}

// Len returns the number of parameters.
func (q *Query) Len() int {
	return len(q.params)
}

// NormalizeParamName strips a single placeholder prefix from name.
func NormalizeParamName(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && strings.ContainsRune("@:$", rune(name[0])) {
		return name[1:]
	}
	return name
}
