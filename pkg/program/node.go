package program

// NodeKind discriminates the view-node union.
type NodeKind string

// View node kinds.
const (
	KindElement   NodeKind = "element"
	KindText      NodeKind = "text"
	KindIf        NodeKind = "if"
	KindEach      NodeKind = "each"
	KindSlot      NodeKind = "slot"
	KindComponent NodeKind = "component"
	KindCode      NodeKind = "code"
)

// Node is a view tree node. The same union serves both authored views
// and compiled views; compilation substitutes slots and components but
// does not change the node vocabulary.
type Node interface {
	NodeKind() NodeKind
}

// ElementNode is a DOM element with props and children.
type ElementNode struct {
	Tag      string
	Props    map[string]Prop
	Children []Node
}

// TextNode is a text node whose content is an evaluated expression.
type TextNode struct {
	Value Expr
}

// IfNode renders Then when Condition is truthy, otherwise Else.
// Else may be nil.
type IfNode struct {
	Condition Expr
	Then      Node
	Else      Node
}

// EachNode renders Body once per item of the evaluated Items.
// As is bound in a new scope visible only within Body; Index, when
// non-empty, is a second binding in the same scope.
type EachNode struct {
	Items Expr
	As    string
	Index string
	Body  Node
}

// SlotNode marks a substitution point in a layout view. An empty Name
// (or "default") is the default slot.
type SlotNode struct {
	Name string
}

// ComponentNode instantiates a declared component with evaluated props.
type ComponentNode struct {
	Name  string
	Props map[string]Expr
}

// CodeNode is a preformatted code block with literal content.
type CodeNode struct {
	Language string
	Content  string
}

func (*ElementNode) NodeKind() NodeKind   { return KindElement }
func (*TextNode) NodeKind() NodeKind      { return KindText }
func (*IfNode) NodeKind() NodeKind        { return KindIf }
func (*EachNode) NodeKind() NodeKind      { return KindEach }
func (*SlotNode) NodeKind() NodeKind      { return KindSlot }
func (*ComponentNode) NodeKind() NodeKind { return KindComponent }
func (*CodeNode) NodeKind() NodeKind      { return KindCode }

// IsDefaultSlot reports whether a slot node is the default slot.
func (s *SlotNode) IsDefaultSlot() bool {
	return s.Name == "" || s.Name == "default"
}

// PropKind discriminates element prop values.
type PropKind int

// Prop kinds.
const (
	PropStatic PropKind = iota
	PropExpr
	PropEvent
)

// Prop is one element prop: a static literal, a bound expression, or an
// event handler.
type Prop interface {
	PropKind() PropKind
}

// StaticProp is a plain attribute value.
type StaticProp struct {
	Value any
}

// ExprProp is an attribute bound to an expression, re-evaluated when
// its state dependencies change.
type ExprProp struct {
	Expr Expr
}

// EventProp wires a DOM event to an action dispatch. Payload may be nil.
type EventProp struct {
	Event   string
	Action  string
	Payload *Payload
	Options *EventOptions
}

// EventOptions carries per-event behavior flags. Threshold and
// RootMargin apply to intersect events only.
type EventOptions struct {
	Once           bool
	PreventDefault bool
	Threshold      float64
	RootMargin     string
}

// Payload is either a single expression or an object whose fields are
// each independently an expression. Exactly one of Expr and Fields is
// set.
type Payload struct {
	Expr   Expr
	Fields map[string]Expr
}

func (StaticProp) PropKind() PropKind { return PropStatic }
func (ExprProp) PropKind() PropKind   { return PropExpr }
func (EventProp) PropKind() PropKind  { return PropEvent }
