// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"sort"
	"strconv"
	"strings"
)

// TargetPath is the arena-index path from a forest root down to one target
// node. Paths are transient query state and are never persisted.
type TargetPath struct {
	Nodes []int
}

// Terminal returns the arena index of the target node itself.
func (p TargetPath) Terminal() int { return p.Nodes[len(p.Nodes)-1] }

// Locate collects root-to-node paths for every node whose normalized path
// matches a target.
//
// Deep targets contribute the matching node plus a separate path for every
// descendant; shallow targets contribute the matching node only. The scan
// never stops at a first match: the same normalized type can recur at
// multiple tree positions, so sibling and descendant subtrees are checked
// independently. The returned paths are de-duplicated.
func Locate(t *Tree, deep, shallow []string) []TargetPath {
	if t.Empty() || (len(deep) == 0 && len(shallow) == 0) {
		return nil
	}
	deepSet := toSet(deep)
	shallowSet := toSet(shallow)

	var out []TargetPath
	seen := make(map[string]bool)
	add := func(path []int) {
		key := pathKey(path)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, TargetPath{Nodes: append([]int(nil), path...)})
	}

	var walk func(idx int, trail []int)
	var collectSubtree func(idx int, trail []int)
	collectSubtree = func(idx int, trail []int) {
		trail = append(trail, idx)
		add(trail)
		for _, child := range t.Node(idx).Children {
			collectSubtree(child, trail)
		}
	}
	walk = func(idx int, trail []int) {
		node := t.Node(idx)
		trail = append(trail, idx)
		if deepSet[node.NormalizedPath] {
			add(trail)
			for _, child := range node.Children {
				collectSubtree(child, trail)
			}
		} else if shallowSet[node.NormalizedPath] {
			add(trail)
		}
		for _, child := range node.Children {
			walk(child, trail)
		}
	}
	for _, root := range t.Roots {
		walk(root, nil)
	}
	return out
}

// Reconstruct rebuilds the minimal multi-root forest spanning the given
// paths.
//
// Every node along a path appears in the result: pure ancestors with their
// properties dropped, terminal targets with their cleaned properties
// retained. A node that is both an ancestor on one path and the terminal of
// another is kept once, with target properties populated and the other
// branch's children merged under it. Sibling order follows the source.
func Reconstruct(t *Tree, paths []TargetPath) []*ResultObject {
	if len(paths) == 0 {
		return nil
	}
	type rebuildNode struct {
		idx      int
		terminal bool
		children map[int]*rebuildNode
	}
	newRebuild := func(idx int) *rebuildNode {
		return &rebuildNode{idx: idx, children: make(map[int]*rebuildNode)}
	}

	roots := make(map[int]*rebuildNode)
	for _, p := range paths {
		first := p.Nodes[0]
		cur, ok := roots[first]
		if !ok {
			cur = newRebuild(first)
			roots[first] = cur
		}
		for _, idx := range p.Nodes[1:] {
			next, ok := cur.children[idx]
			if !ok {
				next = newRebuild(idx)
				cur.children[idx] = next
			}
			cur = next
		}
		cur.terminal = true
	}

	var convert func(rn *rebuildNode) *ResultObject
	convert = func(rn *rebuildNode) *ResultObject {
		node := t.Node(rn.idx)
		out := &ResultObject{FullPath: node.FullPath}
		if rn.terminal {
			out.Properties = cleanProperties(node.Properties)
		}
		for _, idx := range sortedKeys(rn.children) {
			out.Children = append(out.Children, convert(rn.children[idx]))
		}
		return out
	}

	result := make([]*ResultObject, 0, len(roots))
	for _, idx := range sortedKeys(roots) {
		result = append(result, convert(roots[idx]))
	}
	return result
}

func toSet(paths []string) map[string]bool {
	if len(paths) == 0 {
		return nil
	}
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

// pathKey renders an index path as a comparable tuple key.
func pathKey(path []int) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "/")
}

// Arena indices increase in document order, so ascending index order is
// source order for siblings.
func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
