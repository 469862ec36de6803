// Package emltree holds the generic tree representation of a parsed EML
// document and the helpers used to navigate it safely.
//
// The tree follows the conventions of the xmltodict family of converters:
//   - an element with only text becomes a Text node
//   - an empty element becomes a Null node
//   - attributes are stored under "@name", text next to attributes or children
//     under "#text"
//   - repeated child elements collapse into a List node
//
// Namespace prefixes are kept exactly as written in the document
// ("kr:ElectionDate"), because the EML schema eras differ in those prefixes.
package emltree

// Kind tags the variant held by a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindMap
	KindList
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindList:
		return "list"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// TextKey and AttrPrefix are the reserved key markers for text content and attributes.
const (
	TextKey    = "#text"
	AttrPrefix = "@"
)

// Node is one value in a document tree.
//
// A nil *Node is a valid Null node; every method is nil-safe so callers can
// chain lookups without checking each step.
type Node struct {
	kind   Kind
	keys   []string
	fields map[string]*Node
	items  []*Node
	text   string
}

// NewMap returns an empty Map node.
func NewMap() *Node {
	return &Node{kind: KindMap, fields: map[string]*Node{}}
}

// NewList returns a List node holding items.
func NewList(items ...*Node) *Node {
	return &Node{kind: KindList, items: items}
}

// NewText returns a Text node.
func NewText(s string) *Node {
	return &Node{kind: KindText, text: s}
}

// Kind reports the variant of n. A nil node is KindNull.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// IsNull reports whether n carries no value.
func (n *Node) IsNull() bool { return n.Kind() == KindNull }

// IsMap reports whether n is a Map node.
func (n *Node) IsMap() bool { return n.Kind() == KindMap }

// Set stores v under key, keeping first-insertion order. Set on a non-map is a no-op.
func (n *Node) Set(key string, v *Node) *Node {
	if n.Kind() != KindMap {
		return n
	}
	if _, ok := n.fields[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = v
	return n
}

// Field returns the value stored under key.
func (n *Node) Field(key string) (*Node, bool) {
	if n.Kind() != KindMap {
		return nil, false
	}
	v, ok := n.fields[key]
	return v, ok
}

// Keys returns map keys in document order.
func (n *Node) Keys() []string {
	if n.Kind() != KindMap {
		return nil
	}
	return n.keys
}

// Items returns the elements of a List node.
func (n *Node) Items() []*Node {
	if n.Kind() != KindList {
		return nil
	}
	return n.items
}

// Scalar returns the text of a Text node.
func (n *Node) Scalar() (string, bool) {
	if n.Kind() != KindText {
		return "", false
	}
	return n.text, true
}

// add appends child under key, turning a repeated key into a List.
func (n *Node) add(key string, child *Node) {
	prev, ok := n.fields[key]
	if !ok {
		n.Set(key, child)
		return
	}
	// Elements never parse to List nodes, so a List here is an earlier repeat.
	if prev.Kind() == KindList {
		prev.items = append(prev.items, child)
		return
	}
	n.fields[key] = NewList(prev, child)
}
