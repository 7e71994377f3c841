// Package dom provides the in-memory document model the renderer and
// hydrator operate on: elements, text nodes, event dispatch, file
// inputs and intersection observers. Server-rendered markup is adopted
// into this model by parsing it with golang.org/x/net/html.
package dom

import (
	"strings"
)

// Node is either an *Element or a *Text.
type Node interface {
	Parent() *Element
	setParent(*Element)
	textContent(b *strings.Builder)
}

// Document owns a tree of nodes and the observers registered against
// it.
type Document struct {
	root      *Element
	observers []*IntersectionObserver
}

// NewDocument creates an empty document with a root element.
func NewDocument() *Document {
	d := &Document{}
	d.root = &Element{doc: d, Tag: "root"}
	return d
}

// Root returns the document's root element.
func (d *Document) Root() *Element { return d.root }

// CreateElement creates a detached element.
func (d *Document) CreateElement(tag string) *Element {
	return &Element{doc: d, Tag: tag}
}

// CreateText creates a detached text node.
func (d *Document) CreateText(data string) *Text {
	return &Text{Data: data}
}

// Text is a text node.
type Text struct {
	parent *Element
	Data   string
}

func (t *Text) Parent() *Element      { return t.parent }
func (t *Text) setParent(p *Element)  { t.parent = p }
func (t *Text) textContent(b *strings.Builder) {
	b.WriteString(t.Data)
}

// Element is a DOM element: tag, ordered attributes, children and
// event listeners. Value and Files model form inputs.
type Element struct {
	doc      *Document
	parent   *Element
	Tag      string
	attrs    map[string]string
	attrKeys []string
	children []Node
	handlers map[string][]*listener

	// Value is the current input value, for input and textarea elements.
	Value string
	// files holds the selected files of an <input type="file">.
	files []*File
}

type listener struct {
	fn      func(*Event)
	removed bool
}

func (e *Element) Parent() *Element     { return e.parent }
func (e *Element) setParent(p *Element) { e.parent = p }

func (e *Element) textContent(b *strings.Builder) {
	for _, c := range e.children {
		c.textContent(b)
	}
}

// TextContent returns the concatenated text of the subtree.
func (e *Element) TextContent() string {
	var b strings.Builder
	e.textContent(&b)
	return b.String()
}

// SetAttribute sets an attribute, preserving first-set order.
func (e *Element) SetAttribute(name, value string) {
	if e.attrs == nil {
		e.attrs = make(map[string]string)
	}
	if _, exists := e.attrs[name]; !exists {
		e.attrKeys = append(e.attrKeys, name)
	}
	e.attrs[name] = value
}

// RemoveAttribute removes an attribute if present.
func (e *Element) RemoveAttribute(name string) {
	if _, exists := e.attrs[name]; !exists {
		return
	}
	delete(e.attrs, name)
	for i, k := range e.attrKeys {
		if k == name {
			e.attrKeys = append(e.attrKeys[:i], e.attrKeys[i+1:]...)
			break
		}
	}
}

// Attribute returns an attribute value and whether it is set.
func (e *Element) Attribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// AttributeKeys returns attribute names in first-set order.
func (e *Element) AttributeKeys() []string {
	return append([]string(nil), e.attrKeys...)
}

// Children returns the element's children.
func (e *Element) Children() []Node {
	return e.children
}

// AppendChild appends a node, reparenting it.
func (e *Element) AppendChild(n Node) {
	if p := n.Parent(); p != nil {
		p.RemoveChild(n)
	}
	n.setParent(e)
	e.children = append(e.children, n)
}

// InsertAt inserts a node at index i, clamped to the child range.
func (e *Element) InsertAt(i int, n Node) {
	if p := n.Parent(); p != nil {
		p.RemoveChild(n)
	}
	if i < 0 {
		i = 0
	}
	if i > len(e.children) {
		i = len(e.children)
	}
	n.setParent(e)
	e.children = append(e.children, nil)
	copy(e.children[i+1:], e.children[i:])
	e.children[i] = n
}

// RemoveChild detaches a child node. Unknown nodes are ignored.
func (e *Element) RemoveChild(n Node) {
	for i, c := range e.children {
		if c == n {
			e.children = append(e.children[:i], e.children[i+1:]...)
			n.setParent(nil)
			return
		}
	}
}

// IndexOf returns the child index of n, or -1.
func (e *Element) IndexOf(n Node) int {
	for i, c := range e.children {
		if c == n {
			return i
		}
	}
	return -1
}

// AddEventListener registers a handler and returns its removal
// function. Removal is idempotent.
func (e *Element) AddEventListener(typ string, fn func(*Event)) func() {
	if e.handlers == nil {
		e.handlers = make(map[string][]*listener)
	}
	l := &listener{fn: fn}
	e.handlers[typ] = append(e.handlers[typ], l)
	return func() { l.removed = true }
}

// DispatchEvent invokes the element's listeners for the event type in
// registration order.
func (e *Element) DispatchEvent(ev *Event) {
	if ev.Target == nil {
		ev.Target = e
	}
	for _, l := range e.handlers[ev.Type] {
		if !l.removed {
			l.fn(ev)
		}
	}
}

// File models one selected file of a file input. Data is the raw
// content handle that actions pass through to upload logic.
type File struct {
	Name string
	Size int64
	Type string
	Data []byte
}

// SetFiles sets the selected files of a file input.
func (e *Element) SetFiles(files []*File) {
	e.files = files
}

// Files returns the selected files, or nil when none are selected.
func (e *Element) Files() []*File {
	return e.files
}

// IsFileInput reports whether the element is an <input type="file">.
func (e *Element) IsFileInput() bool {
	t, _ := e.Attribute("type")
	return e.Tag == "input" && t == "file"
}

// Event is a dispatched DOM event.
type Event struct {
	Type             string
	Target           *Element
	defaultPrevented bool
}

// PreventDefault marks the event's default action as suppressed.
func (ev *Event) PreventDefault() { ev.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (ev *Event) DefaultPrevented() bool { return ev.defaultPrevented }
