// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package document

import (
	"strings"
)

// NodeType tells element nodes from text nodes.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

func (t NodeType) String() string {
	switch t {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	}
	return "unknown"
}

// Node is one node of a parsed document. Element nodes carry a Name, Attrs
// and Children; text nodes carry Text only.
type Node struct {
	Type     NodeType
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string
	// Line is the line the node starts on in its source, 0 for nodes built
	// in code.
	Line int
}

// Element returns a new element node.
func Element(name string, attrs map[string]string, children ...*Node) *Node {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Node{Type: ElementNode, Name: name, Attrs: attrs, Children: children}
}

// Text returns a new text node.
func Text(text string) *Node {
	return &Node{Type: TextNode, Text: text}
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// InnerText concatenates the text of the direct text children of n.
func (n *Node) InnerText() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range n.Children {
		if c.Type == TextNode {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// Elements returns the direct element children of n with the given name, or
// every element child when name is empty.
func (n *Node) Elements(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == ElementNode && (name == "" || c.Name == name) {
			out = append(out, c)
		}
	}
	return out
}
