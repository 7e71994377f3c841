package analyzer

import (
	"strings"

	"github.com/yuuichieguchi/constela/pkg/diag"
	"github.com/yuuichieguchi/constela/pkg/program"
)

// checkComponentCycles builds the component reference graph and reports
// a COMPONENT_CYCLE for every cycle found, with the cycle path in the
// message.
func (a *analyzer) checkComponentCycles(components map[string]*program.Component) {
	edges := make(map[string][]string, len(components))
	for _, name := range sortedKeys(components) {
		def := components[name]
		if def.View == nil {
			continue
		}
		refs := collectComponentRefs(def.View, nil)
		edges[name] = refs
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(id string) []string
	dfs = func(id string) []string {
		visited[id] = true
		recStack[id] = true
		for _, ref := range edges[id] {
			if _, declared := components[ref]; !declared {
				continue // reported as COMPONENT_NOT_FOUND by the walk
			}
			if !visited[ref] {
				parent[ref] = id
				if cycle := dfs(ref); cycle != nil {
					return cycle
				}
			} else if recStack[ref] {
				cycle := []string{ref}
				for cur := id; cur != ref; cur = parent[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				return append([]string{ref}, cycle...)
			}
		}
		recStack[id] = false
		return nil
	}

	for _, name := range sortedKeys(components) {
		if visited[name] {
			continue
		}
		if cycle := dfs(name); cycle != nil {
			e := diag.New(diag.ComponentCycle, "/components/"+cycle[0],
				"component cycle: %s", strings.Join(cycle, " -> "))
			a.report(e)
		}
	}
}

// collectComponentRefs gathers the component names referenced anywhere
// in a view subtree, in document order, deduplicated.
func collectComponentRefs(n program.Node, acc []string) []string {
	switch node := n.(type) {
	case *program.ElementNode:
		for _, child := range node.Children {
			acc = collectComponentRefs(child, acc)
		}
	case *program.IfNode:
		if node.Then != nil {
			acc = collectComponentRefs(node.Then, acc)
		}
		if node.Else != nil {
			acc = collectComponentRefs(node.Else, acc)
		}
	case *program.EachNode:
		if node.Body != nil {
			acc = collectComponentRefs(node.Body, acc)
		}
	case *program.ComponentNode:
		for _, existing := range acc {
			if existing == node.Name {
				return acc
			}
		}
		acc = append(acc, node.Name)
	}
	return acc
}
