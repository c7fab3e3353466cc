package xacro

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Node is one of *Element, *Text or *Comment.
type Node interface {
	clone() Node
}

// Attr is an XML attribute. Name keeps its namespace prefix, e.g. "xmlns:xacro".
type Attr struct {
	Name  string
	Value string
}

// Element is an XML element. Name keeps its namespace prefix, e.g. "xacro:macro".
type Element struct {
	Name     string
	Attrs    []Attr
	Children []Node
}

// Text is character data with surrounding whitespace removed.
type Text struct {
	Data string
}

// Comment is an XML comment.
type Comment struct {
	Data string
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, attr := range e.Attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// SetAttr replaces the named attribute or appends it.
func (e *Element) SetAttr(name, value string) {
	for i, attr := range e.Attrs {
		if attr.Name == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
}

// ChildElements returns the element children in document order.
func (e *Element) ChildElements() []*Element {
	var elems []*Element
	for _, child := range e.Children {
		if elem, ok := child.(*Element); ok {
			elems = append(elems, elem)
		}
	}
	return elems
}

func (e *Element) clone() Node {
	cloned := &Element{Name: e.Name, Attrs: append([]Attr{}, e.Attrs...)}
	cloned.Children = cloneNodes(e.Children)
	return cloned
}

func (t *Text) clone() Node {
	return &Text{Data: t.Data}
}

func (c *Comment) clone() Node {
	return &Comment{Data: c.Data}
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	cloned := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		cloned = append(cloned, node.clone())
	}
	return cloned
}

// Document is a processed robot description.
type Document struct {
	Root *Element
}

// ParseDocument reads an XML document. Whitespace-only character data is dropped and processing
// instructions and directives are ignored.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := parseElementTree(r)
	if err != nil {
		return nil, err
	}
	return &Document{Root: root}, nil
}

func parseElementTree(r io.Reader) (*Element, error) {
	decoder := xml.NewDecoder(r)
	var (
		root  *Element
		stack []*Element
	)
	for {
		// RawToken keeps namespace prefixes as written, which is what xacro dispatches on.
		token, err := decoder.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed XML")
		}

		switch tok := token.(type) {
		case xml.StartElement:
			elem := &Element{Name: qualifiedName(tok.Name)}
			for _, attr := range tok.Attr {
				elem.Attrs = append(elem.Attrs, Attr{Name: qualifiedName(attr.Name), Value: attr.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("malformed XML: multiple root elements")
				}
				root = elem
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, elem)
			}
			stack = append(stack, elem)
		case xml.EndElement:
			// RawToken does not verify that start and end elements match.
			name := qualifiedName(tok.Name)
			if len(stack) == 0 || stack[len(stack)-1].Name != name {
				return nil, errors.Errorf("malformed XML: unexpected end element </%s>", name)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			data := strings.TrimSpace(string(tok))
			if data == "" {
				continue
			}
			if len(stack) == 0 {
				return nil, errors.New("malformed XML: character data outside of the root element")
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Text{Data: data})
		case xml.Comment:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Comment{Data: string(tok)})
		}
	}
	if root == nil {
		return nil, errors.New("malformed XML: no root element")
	}
	if len(stack) != 0 {
		return nil, errors.Errorf("malformed XML: element <%s> is not closed", stack[len(stack)-1].Name)
	}
	return root, nil
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

// PrettyXML renders the document with one element per line, nesting indented by indent. An
// element whose only child is text is kept on a single line.
func (d *Document) PrettyXML(indent string) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" ?>` + "\n")
	if d.Root != nil {
		writeNode(&buf, d.Root, "", indent)
	}
	return buf.String()
}

// String renders the document with two-space indentation.
func (d *Document) String() string {
	return d.PrettyXML("  ")
}

func writeNode(buf *bytes.Buffer, node Node, current, indent string) {
	switch n := node.(type) {
	case *Element:
		buf.WriteString(current)
		buf.WriteString("<")
		buf.WriteString(n.Name)
		for _, attr := range n.Attrs {
			buf.WriteString(" ")
			buf.WriteString(attr.Name)
			buf.WriteString(`="`)
			buf.WriteString(escapeAttr(attr.Value))
			buf.WriteString(`"`)
		}
		switch {
		case len(n.Children) == 0:
			buf.WriteString("/>\n")
		case len(n.Children) == 1 && isText(n.Children[0]):
			buf.WriteString(">")
			buf.WriteString(escapeText(n.Children[0].(*Text).Data))
			buf.WriteString("</" + n.Name + ">\n")
		default:
			buf.WriteString(">\n")
			for _, child := range n.Children {
				writeNode(buf, child, current+indent, indent)
			}
			buf.WriteString(current + "</" + n.Name + ">\n")
		}
	case *Text:
		buf.WriteString(current + escapeText(n.Data) + "\n")
	case *Comment:
		buf.WriteString(current + "<!--" + n.Data + "-->\n")
	}
}

func isText(node Node) bool {
	_, ok := node.(*Text)
	return ok
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
