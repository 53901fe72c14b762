// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import "strings"

// UsageResult is the outcome of a usage query over a parsed report tree.
type UsageResult struct {
	// Objects is the minimal spanning forest of the located targets.
	Objects []*ResultObject

	// Usages groups the objects referencing a target by their top-level
	// plural type.
	Usages UsageGroups
}

// ResolveUsages runs the usage pipeline for a report tree:
//
//	fuzzy match -> path partition -> locate -> reconstruct + reference scan
//
// Fuzzy candidates are partitioned into specific objects (normalized path
// with exactly one dot, located as shallow targets) and general types (no
// dot, located as deep targets). If either the fuzzy match or the locate
// phase comes up empty, the result is empty — never an error.
func ResolveUsages(t *Tree, norm *Normalizer, query string, limit int) UsageResult {
	matches := FindObjects(t, query, limit)
	if len(matches) == 0 {
		return UsageResult{}
	}

	var deep, shallow []string
	for _, idx := range matches {
		np := t.Node(idx).NormalizedPath
		switch strings.Count(np, ".") {
		case 0:
			deep = append(deep, np)
		case 1:
			shallow = append(shallow, np)
		}
	}

	paths := Locate(t, deep, shallow)
	if len(paths) == 0 {
		return UsageResult{}
	}

	targets := make(map[string]bool, len(paths))
	for _, p := range paths {
		np := t.Node(p.Terminal()).NormalizedPath
		if strings.Contains(np, ".") {
			targets[np] = true
		}
	}

	return UsageResult{
		Objects: Reconstruct(t, paths),
		Usages:  FindReferences(t, norm, targets),
	}
}

// FindReferences scans the whole forest for nodes whose type-reference
// properties name one of the target normalized paths.
//
// Each referencing node produces a used-by entry naming the node and the
// specific property that held the reference, grouped under the plural type
// of the node's top-level ancestor. Entries for the same referencing object
// are merged; a property colliding during a merge accumulates a value list
// instead of being overwritten.
func FindReferences(t *Tree, norm *Normalizer, targets map[string]bool) UsageGroups {
	if t.Empty() || len(targets) == 0 {
		return nil
	}
	var groups UsageGroups
	for idx := range t.Nodes {
		node := t.Node(idx)
		for _, prop := range node.Properties {
			if prop.Value.Kind == ValueScalar {
				continue
			}
			for _, ref := range prop.Value.Refs {
				if !targets[ref] {
					continue
				}
				plural := norm.Plural(topLevelType(t, idx))
				entry := groups.add(plural, node.FullPath)
				entry.addValue(prop.Key, prop.Value.Raw)
			}
		}
	}
	return groups
}

// topLevelType returns the singular leading type segment of the node's root
// ancestor.
func topLevelType(t *Tree, idx int) string {
	for t.Node(idx).Parent >= 0 {
		idx = t.Node(idx).Parent
	}
	np := t.Node(idx).NormalizedPath
	if i := strings.Index(np, "."); i >= 0 {
		return np[:i]
	}
	return np
}
