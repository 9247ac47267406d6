// Package term encodes and decodes the subset of the external term format
// used on the host channel.
//
// Terms are represented with plain Go values: Atom, Tuple, List, Map,
// Binary and int64. Booleans travel as the atoms true and false.
package term

import "errors"

// Version is the leading byte of every encoded term.
const Version = 131

const (
	tagSmallInteger  = 97
	tagInteger       = 98
	tagAtom          = 100
	tagSmallTuple    = 104
	tagLargeTuple    = 105
	tagNil           = 106
	tagString        = 107
	tagList          = 108
	tagBinary        = 109
	tagSmallBig      = 110
	tagLargeBig      = 111
	tagSmallAtom     = 115
	tagMap           = 116
	tagAtomUTF8      = 118
	tagSmallAtomUTF8 = 119
)

var (
	ErrVersion     = errors.New("term: bad version byte")
	ErrTruncated   = errors.New("term: truncated input")
	ErrUnsupported = errors.New("term: unsupported tag")
	ErrRange       = errors.New("term: integer out of range")
	ErrType        = errors.New("term: cannot encode value")
)

// Atom is an atom such as ok or speed.
type Atom string

// Tuple is a fixed-size group of terms.
type Tuple []any

// List is a proper list. The empty list decodes to an empty List.
type List []any

// Binary is a byte string.
type Binary []byte

// Pair is one key/value association of a Map.
type Pair struct {
	Key   any
	Value any
}

// Map keeps its pairs in the order they were added.
type Map []Pair

// Property is one {Key, Value} element of a property list.
type Property struct {
	Key   Atom
	Value any
}

func AsAtom(v any) (Atom, bool) {
	a, ok := v.(Atom)
	return a, ok
}

// AsBool accepts the atoms true and false.
func AsBool(v any) (bool, bool) {
	switch v {
	case Atom("true"):
		return true, true
	case Atom("false"):
		return false, true
	}
	return false, false
}

func AsInt(v any) (int64, bool) {
	i, ok := v.(int64)
	return i, ok
}

func AsBinary(v any) ([]byte, bool) {
	b, ok := v.(Binary)
	return b, ok
}

// AsTuple returns v if it is a tuple of exactly n elements.
func AsTuple(v any, n int) (Tuple, bool) {
	t, ok := v.(Tuple)
	if !ok || len(t) != n {
		return nil, false
	}
	return t, true
}

func AsList(v any) (List, bool) {
	l, ok := v.(List)
	return l, ok
}

// AsProplist returns the {atom, value} pairs of a list. Any other element
// shape makes the whole list invalid.
func AsProplist(v any) ([]Property, bool) {
	l, ok := AsList(v)
	if !ok {
		return nil, false
	}
	props := make([]Property, 0, len(l))
	for _, el := range l {
		t, ok := AsTuple(el, 2)
		if !ok {
			return nil, false
		}
		key, ok := AsAtom(t[0])
		if !ok {
			return nil, false
		}
		props = append(props, Property{Key: key, Value: t[1]})
	}
	return props, true
}
