package program

// Version is the program schema version this compiler accepts.
const Version = "1.0"

// Program is the authored compiled unit for a single page. It is
// immutable once loaded; transformations produce new values.
type Program struct {
	Version    string
	State      map[string]StateField
	Actions    []*Action
	View       Node
	Data       map[string]*DataSource
	Imports    map[string]string
	Route      *Route
	Components map[string]*Component
}

// LayoutProgram is a Program variant used as a page wrapper. Layouts
// carry no route and their view may contain slot nodes.
type LayoutProgram struct {
	Version    string
	State      map[string]StateField
	Actions    []*Action
	View       Node
	Data       map[string]*DataSource
	Imports    map[string]string
	Components map[string]*Component
}

// StateField describes one declared state field.
type StateField struct {
	Type    string
	Initial any
}

// Action is an authored action: a named sequence of steps.
type Action struct {
	Name  string
	Steps []Step
}

// StepDo identifies what a step does to its target state field.
type StepDo string

// Step kinds.
const (
	StepSet    StepDo = "set"
	StepUpdate StepDo = "update"
)

// Step mutates one state field. Set assigns the evaluated Value;
// Update applies the named Operation to the current value.
type Step struct {
	Do        StepDo
	Target    string
	Value     Expr
	Operation string
}

// Route describes the page's route binding.
type Route struct {
	Path           string
	Layout         string
	LayoutParams   map[string]any
	Meta           map[string]any
	GetStaticPaths *StaticPaths
}

// StaticPaths enumerates concrete routes from a data source. Params
// maps route param names to expressions evaluated per source entry.
type StaticPaths struct {
	Source string
	Params map[string]Expr
}

// DataSourceType identifies how a data source is resolved.
type DataSourceType string

// Data source types.
const (
	DataGlob DataSourceType = "glob"
	DataFile DataSourceType = "file"
	DataAPI  DataSourceType = "api"
)

// DataSource declares an external data binding resolved at build time.
type DataSource struct {
	Type      DataSourceType
	Pattern   string
	Path      string
	URL       string
	Transform string
}

// Component is a reusable view fragment with a typed prop contract.
type Component struct {
	Props map[string]ComponentProp
	View  Node
}

// ComponentProp declares one component prop.
type ComponentProp struct {
	Type     string
	Required bool
}

// CompiledProgram is the post-compilation unit consumed by the
// renderer, hydrator and server renderer. Action and state keys are
// unique by construction.
type CompiledProgram struct {
	Version    string
	State      map[string]StateField
	Actions    map[string]*CompiledAction
	View       Node
	Components map[string]*Component
	Route      *Route
	Data       map[string]*DataSource
	ImportData map[string]any
}

// CompiledAction is an action keyed by name in CompiledProgram.Actions.
type CompiledAction struct {
	Name  string
	Steps []Step
}

// RouteContext is the runtime route information supplied by the host.
type RouteContext struct {
	Params map[string]string
	Query  map[string]string
	Path   string
}

// ParamNames extracts declared param names from a route path pattern.
// Both "[name]" and ":name" segment syntaxes are recognized.
func (r *Route) ParamNames() []string {
	if r == nil || r.Path == "" {
		return nil
	}
	var names []string
	for _, seg := range splitPath(r.Path) {
		switch {
		case len(seg) > 2 && seg[0] == '[' && seg[len(seg)-1] == ']':
			names = append(names, seg[1:len(seg)-1])
		case len(seg) > 1 && seg[0] == ':':
			names = append(names, seg[1:])
		}
	}
	return names
}

func splitPath(p string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				segs = append(segs, p[start:i])
			}
			start = i + 1
		}
	}
	return segs
}
