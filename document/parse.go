// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Parse reads an XML document and returns its root element. Character data
// and CDATA sections become text nodes, adjacent ones merged. Comments and
// processing instructions are dropped. Namespace prefixes are not kept.
func Parse(r io.Reader) (*Node, error) {
	d := xml.NewDecoder(r)

	var (
		root  *Node
		stack []*Node
	)
	for {
		line, _ := d.InputPos()
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot parse document: %w", err)
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Type:  ElementNode,
				Name:  tok.Name.Local,
				Attrs: make(map[string]string, len(tok.Attr)),
				Line:  line,
			}
			for _, a := range tok.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("cannot parse document: line %d: more than one root element", line)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			if k := len(parent.Children); k > 0 && parent.Children[k-1].Type == TextNode {
				parent.Children[k-1].Text += string(tok)
				continue
			}
			parent.Children = append(parent.Children, &Node{Type: TextNode, Text: string(tok), Line: line})
		}
	}
	if root == nil {
		return nil, errors.New("cannot parse document: no root element")
	}
	return root, nil
}
