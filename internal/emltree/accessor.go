package emltree

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrFieldNotFound is returned by lookups whose caller treats the field as mandatory.
var ErrFieldNotFound = errors.New("field not found")

// Get walks path from n and returns the node found there.
//
// It returns nil as soon as a key is absent or the current node is not a Map
// (for example a Text node where a structure was expected). It never panics.
func Get(n *Node, path ...string) *Node {
	cur := n
	for _, key := range path {
		next, ok := cur.Field(key)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Text resolves path and returns the text carried by the node found there:
// the value of a Text node, or the "#text" entry of a Map node (an element
// that also has attributes).
func Text(n *Node, path ...string) (string, bool) {
	target := Get(n, path...)
	if s, ok := target.Scalar(); ok {
		return s, true
	}
	return Get(target, TextKey).Scalar()
}

// Attr returns the text of attribute name on n.
func Attr(n *Node, name string) (string, bool) {
	return Get(n, AttrPrefix+name).Scalar()
}

// AsList normalizes a field that the schema declares as repeated but that
// collapses to a single item when only one is present.
//
// A List yields its items, Null yields nothing, anything else yields a
// one-element slice.
func AsList(n *Node) []*Node {
	switch n.Kind() {
	case KindNull:
		return nil
	case KindList:
		return n.Items()
	default:
		return []*Node{n}
	}
}

// ResolvePrefixed looks up base under each prefix in order ("kr" checks
// "kr:base", "" checks the bare key) and returns the first present value.
//
// The returned error wraps ErrFieldNotFound; callers treating the field as
// optional simply ignore it.
func ResolvePrefixed(n *Node, base string, prefixes ...string) (*Node, error) {
	for _, p := range prefixes {
		if v, ok := n.Field(Prefixed(p, base)); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (prefixes %v)", ErrFieldNotFound, base, prefixes)
}

// Prefixed joins a namespace prefix and a local name.
func Prefixed(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

var numberedPrefix = regexp.MustCompile(`^(ns[0-9]+):`)

// DiscoverPrefix scans the keys of n in document order and returns the first
// numbered namespace prefix ("ns3" for "ns3:PersonName").
//
// Some EML producers number their namespace prefixes per document, so the
// prefix of a nested block can only be learned from the block itself.
func DiscoverPrefix(n *Node) (string, bool) {
	for _, k := range n.Keys() {
		if m := numberedPrefix.FindStringSubmatch(k); m != nil {
			return m[1], true
		}
	}
	return "", false
}
