package emltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// DecodeError reports a document whose bytes could not be decoded into a tree.
// Callers treat such a document as absent.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "emltree: decode: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

type frame struct {
	name string
	node *Node
	text strings.Builder
}

// Parse reads one XML document from r and converts it into a tree whose root
// is a Map holding the document element.
//
// Documents declaring a non UTF-8 encoding are transcoded through
// golang.org/x/text. All syntax and decoding failures are returned as *DecodeError.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	root := NewMap()
	var stack []*frame

	for {
		// RawToken keeps namespace prefixes as written instead of resolving them to URIs.
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DecodeError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			f := &frame{name: qualifiedName(t.Name)}
			if len(t.Attr) > 0 {
				f.node = NewMap()
				for _, a := range t.Attr {
					f.node.Set(AttrPrefix+qualifiedName(a.Name), NewText(a.Value))
				}
			}
			stack = append(stack, f)

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &DecodeError{Err: fmt.Errorf("unexpected end element </%s>", qualifiedName(t.Name))}
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if name := qualifiedName(t.Name); name != f.name {
				return nil, &DecodeError{Err: fmt.Errorf("element <%s> closed by </%s>", f.name, name)}
			}

			node := f.finish()
			if len(stack) == 0 {
				if len(root.Keys()) > 0 {
					return nil, &DecodeError{Err: fmt.Errorf("multiple root elements")}
				}
				root.Set(f.name, node)
				continue
			}
			parent := stack[len(stack)-1]
			if parent.node == nil {
				parent.node = NewMap()
			}
			parent.node.add(f.name, node)
		}
	}

	if len(stack) > 0 {
		return nil, &DecodeError{Err: fmt.Errorf("unexpected end of document inside <%s>", stack[len(stack)-1].name)}
	}
	if len(root.Keys()) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("no root element")}
	}
	return root, nil
}

// ParseString is Parse over an in-memory document.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// finish converts a closed element into its node.
func (f *frame) finish() *Node {
	text := strings.TrimSpace(f.text.String())
	if f.node == nil {
		if text == "" {
			return nil
		}
		return NewText(text)
	}
	if text != "" {
		f.node.Set(TextKey, NewText(text))
	}
	return f.node
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
