// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import "strings"

// searchProperties are the display-like attributes the fuzzy finder matches
// against, mirroring the fields of a prepared JSON export.
var searchProperties = []string{
	PropName,
	PropSynonym,
	PropObjectView,
	PropObjectViewExt,
	PropListView,
	PropListViewExt,
}

// FindObjects runs a fuzzy substring search over the forest and returns the
// arena indices of matching objects, at most limit of them.
//
// Traversal is breadth first with an explicit queue so that stack depth does
// not grow with tree depth. Only leaf-level objects are candidates: a node
// whose normalized path has more than one dot (a nested attribute or
// sub-table row) is never returned, though its children are still searched.
// A matching candidate terminates its branch; a non-matching node's children
// are enqueued.
func FindObjects(t *Tree, query string, limit int) []int {
	if t.Empty() || limit < 1 {
		return nil
	}
	lower := strings.ToLower(query)
	queue := append([]int(nil), t.Roots...)
	var out []int
	for len(queue) > 0 && len(out) < limit {
		idx := queue[0]
		queue = queue[1:]
		node := t.Node(idx)
		if strings.Count(node.NormalizedPath, ".") <= 1 && matchesQuery(node, lower) {
			out = append(out, idx)
			continue
		}
		queue = append(queue, node.Children...)
	}
	return out
}

// matchesQuery reports whether the lowercase query is a substring of any
// display property or of the node's normalized path.
func matchesQuery(n *Node, lowerQuery string) bool {
	for _, key := range searchProperties {
		if v, ok := n.Properties.Get(key); ok {
			if strings.Contains(strings.ToLower(v.Raw), lowerQuery) {
				return true
			}
		}
	}
	return strings.Contains(strings.ToLower(n.NormalizedPath), lowerQuery)
}

// CleanNode renders the node at idx (with its full subtree) into the cleaned
// caller-facing form. Only raw property values survive: normalized shadow
// state never leaves the service.
func CleanNode(t *Tree, idx int) *ResultObject {
	node := t.Node(idx)
	out := &ResultObject{
		FullPath:   node.FullPath,
		Properties: cleanProperties(node.Properties),
	}
	for _, child := range node.Children {
		out.Children = append(out.Children, CleanNode(t, child))
	}
	return out
}

func cleanProperties(props Properties) PropertyMap {
	if len(props) == 0 {
		return nil
	}
	out := make(PropertyMap, 0, len(props))
	for _, p := range props {
		if strings.HasSuffix(p.Key, shadowSuffix) {
			continue
		}
		out = append(out, PropertyEntry{Name: p.Key, Value: p.Value.Raw})
	}
	return out
}
