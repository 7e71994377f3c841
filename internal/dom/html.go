package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses an HTML fragment (as produced by the server
// renderer) into detached nodes of the given document. Whitespace-only
// text between elements is preserved, matching what the server wrote.
func (d *Document) ParseFragment(fragment string) ([]Node, error) {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	parsed, err := html.ParseFragment(strings.NewReader(fragment), container)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	var nodes []Node
	for _, n := range parsed {
		if converted := d.fromHTML(n); converted != nil {
			nodes = append(nodes, converted)
		}
	}
	return nodes, nil
}

func (d *Document) fromHTML(n *html.Node) Node {
	switch n.Type {
	case html.TextNode:
		return &Text{Data: n.Data}
	case html.ElementNode:
		el := d.CreateElement(n.Data)
		for _, attr := range n.Attr {
			el.SetAttribute(attr.Key, attr.Val)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if child := d.fromHTML(c); child != nil {
				el.AppendChild(child)
			}
		}
		return el
	default:
		return nil
	}
}

// voidTags are elements serialized without a closing tag.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// OuterHTML serializes the element and its subtree.
func (e *Element) OuterHTML() string {
	var b strings.Builder
	e.writeHTML(&b)
	return b.String()
}

// InnerHTML serializes the element's children.
func (e *Element) InnerHTML() string {
	var b strings.Builder
	for _, c := range e.children {
		writeNode(&b, c)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n Node) {
	switch node := n.(type) {
	case *Text:
		b.WriteString(html.EscapeString(node.Data))
	case *Element:
		node.writeHTML(b)
	}
}

func (e *Element) writeHTML(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.Tag)
	for _, k := range e.attrKeys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(e.attrs[k]))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if voidTags[e.Tag] {
		return
	}
	for _, c := range e.children {
		writeNode(b, c)
	}
	b.WriteString("</")
	b.WriteString(e.Tag)
	b.WriteByte('>')
}
