package compiler

import (
	"github.com/yuuichieguchi/constela/pkg/program"
)

// LayoutPrefix is the reserved key prefix under which a layout's state
// fields and actions remain reachable when the page declares the same
// name. The page always wins the plain key.
const LayoutPrefix = "$layout."

// ComposeLayoutWithPage merges a compiled layout and a compiled page
// into one program. The layout's default slot is replaced by the page's
// view; named slots are filled from namedSlots. A named slot with no
// matching entry is left in place and renders as empty. If the layout
// has no slot anywhere, the page content is unreachable; this is a
// documented edge case, not a failure.
func ComposeLayoutWithPage(layout *CompiledLayout, page *program.CompiledProgram, namedSlots map[string]program.Node) *program.CompiledProgram {
	view := substituteSlots(layout.View, page.View, namedSlots)

	return &program.CompiledProgram{
		Version:    page.Version,
		State:      mergeState(layout.State, page.State),
		Actions:    mergeActions(layout.Actions, page.Actions),
		View:       view,
		Components: mergeComponents(layout.Components, page.Components),
		Route:      page.Route,
		Data:       mergeData(layout, page),
		ImportData: mergeImportData(layout.ImportData, page.ImportData),
	}
}

// substituteSlots is an explicit tree-rewrite pass: it clones the
// layout view, replacing slot nodes with their content. If the root
// itself is a filled slot, the content replaces the root entirely.
func substituteSlots(n program.Node, pageView program.Node, namedSlots map[string]program.Node) program.Node {
	switch node := n.(type) {
	case *program.SlotNode:
		if node.IsDefaultSlot() {
			return pageView
		}
		if content, ok := namedSlots[node.Name]; ok {
			return content
		}
		return node // unfilled named slot, rendered as empty
	case *program.ElementNode:
		clone := &program.ElementNode{Tag: node.Tag, Props: node.Props}
		for _, child := range node.Children {
			clone.Children = append(clone.Children, substituteSlots(child, pageView, namedSlots))
		}
		return clone
	case *program.IfNode:
		clone := &program.IfNode{Condition: node.Condition}
		if node.Then != nil {
			clone.Then = substituteSlots(node.Then, pageView, namedSlots)
		}
		if node.Else != nil {
			clone.Else = substituteSlots(node.Else, pageView, namedSlots)
		}
		return clone
	case *program.EachNode:
		clone := &program.EachNode{Items: node.Items, As: node.As, Index: node.Index}
		if node.Body != nil {
			clone.Body = substituteSlots(node.Body, pageView, namedSlots)
		}
		return clone
	default:
		// text, component and code nodes carry no slots.
		return n
	}
}

// mergeState copies layout keys first, then page keys, so the page
// wins the plain key on collision. The layout's colliding value stays
// reachable under the $layout. prefix; both forms are present
// simultaneously.
func mergeState(layout, page map[string]program.StateField) map[string]program.StateField {
	out := make(map[string]program.StateField, len(layout)+len(page))
	for k, v := range layout {
		out[k] = v
	}
	for k, v := range page {
		if _, collides := layout[k]; collides {
			out[LayoutPrefix+k] = layout[k]
		}
		out[k] = v
	}
	return out
}

func mergeActions(layout, page map[string]*program.CompiledAction) map[string]*program.CompiledAction {
	out := make(map[string]*program.CompiledAction, len(layout)+len(page))
	for k, v := range layout {
		out[k] = v
	}
	for k, v := range page {
		if la, collides := layout[k]; collides {
			out[LayoutPrefix+k] = &program.CompiledAction{Name: LayoutPrefix + k, Steps: la.Steps}
		}
		out[k] = v
	}
	return out
}

// mergeComponents is a shallow union; component names are project-wide
// unique, so there is no renaming.
func mergeComponents(layout, page map[string]*program.Component) map[string]*program.Component {
	out := make(map[string]*program.Component, len(layout)+len(page))
	for k, v := range layout {
		out[k] = v
	}
	for k, v := range page {
		out[k] = v
	}
	return out
}

// mergeImportData shallow-merges with page precedence on conflicting
// keys. The result is always a non-nil map, so "neither side defines
// importData" and "both empty" are indistinguishable.
func mergeImportData(layout, page map[string]any) map[string]any {
	out := make(map[string]any, len(layout)+len(page))
	for k, v := range layout {
		out[k] = v
	}
	for k, v := range page {
		out[k] = v
	}
	return out
}

// mergeData unions data source declarations with page precedence.
func mergeData(layout *CompiledLayout, page *program.CompiledProgram) map[string]*program.DataSource {
	if layout.Data == nil {
		return page.Data
	}
	out := make(map[string]*program.DataSource, len(layout.Data)+len(page.Data))
	for k, v := range layout.Data {
		out[k] = v
	}
	for k, v := range page.Data {
		out[k] = v
	}
	return out
}
