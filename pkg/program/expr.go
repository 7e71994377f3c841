// Package program defines the data model for Constela programs: the
// expression and view-node tagged unions, the authored Program and
// LayoutProgram shapes, and the CompiledProgram produced by the compiler.
package program

// ExprKind discriminates the expression union.
type ExprKind string

// Expression kinds. The set is closed; the evaluator dispatches
// exhaustively over it.
const (
	ExprLit    ExprKind = "lit"
	ExprState  ExprKind = "state"
	ExprVar    ExprKind = "var"
	ExprData   ExprKind = "data"
	ExprImport ExprKind = "import"
	ExprRoute  ExprKind = "route"
	ExprGet    ExprKind = "get"
	ExprBin    ExprKind = "bin"
	ExprConcat ExprKind = "concat"
	ExprStyle  ExprKind = "style"
	ExprCookie ExprKind = "cookie"
)

// RouteSource identifies which part of the route context a route
// expression reads from.
type RouteSource string

// Route sources.
const (
	RouteParam RouteSource = "param"
	RouteQuery RouteSource = "query"
	RoutePath  RouteSource = "path"
)

// Expr is a value-producing expression node. Concrete types are the
// only implementations; the interface exists so view nodes and actions
// can hold any expression kind.
type Expr interface {
	Kind() ExprKind
}

// Lit is a literal value.
type Lit struct {
	Value any
}

// StateRef reads a state field, optionally traversing Path into it.
type StateRef struct {
	Name string
	Path string
}

// VarRef reads a lexically scoped variable (each bindings, event locals).
type VarRef struct {
	Name string
}

// DataRef reads a resolved data source, optionally traversing Path.
type DataRef struct {
	Name string
	Path string
}

// ImportRef reads resolved import data, optionally traversing Path.
type ImportRef struct {
	Name string
	Path string
}

// RouteRef reads a value from the route context.
type RouteRef struct {
	Name   string
	Source RouteSource
}

// Get evaluates Base and traverses Path on the result. Path segments
// are dot- or slash-delimited; a purely numeric path indexes an array.
type Get struct {
	Base Expr
	Path string
}

// Bin applies a binary operator to two evaluated operands.
type Bin struct {
	Op    string
	Left  Expr
	Right Expr
}

// Concat evaluates every item, coerces each to a string and joins them.
type Concat struct {
	Items []Expr
}

// StyleExpr assembles a class string from a style preset and variants.
type StyleExpr struct {
	Name     string
	Variants map[string]Expr
}

// CookieRef reads a named cookie from the evaluation context.
type CookieRef struct {
	Name string
}

func (Lit) Kind() ExprKind       { return ExprLit }
func (StateRef) Kind() ExprKind  { return ExprState }
func (VarRef) Kind() ExprKind    { return ExprVar }
func (DataRef) Kind() ExprKind   { return ExprData }
func (ImportRef) Kind() ExprKind { return ExprImport }
func (RouteRef) Kind() ExprKind  { return ExprRoute }
func (Get) Kind() ExprKind       { return ExprGet }
func (Bin) Kind() ExprKind       { return ExprBin }
func (Concat) Kind() ExprKind    { return ExprConcat }
func (StyleExpr) Kind() ExprKind { return ExprStyle }
func (CookieRef) Kind() ExprKind { return ExprCookie }
