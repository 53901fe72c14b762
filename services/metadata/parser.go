// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import "strings"

// objectMarker begins a metadata object line in the report grammar.
const objectMarker = "- "

// ParseReport parses an indented configurator report into an arena forest.
//
// The grammar is line oriented and indentation sensitive:
//
//   - A line whose trimmed content starts with "- " opens an object; the
//     remainder is its full path.
//   - More-indented "key: \"value\"" lines set scalar properties.
//   - A bare "key:" line opens a block value: following more-indented lines
//     (surrounding quotes stripped) are newline-joined.
//   - More-indented "- " lines recurse into child objects.
//
// Parsing is total. Lines that fit no production are skipped and reported in
// the returned warnings; malformed indentation simply closes open objects at
// end of input. The function never fails on malformed input.
func ParseReport(lines []string, norm *Normalizer) (*Tree, []ParseWarning) {
	p := &reportParser{lines: lines, norm: norm, tree: &Tree{}}
	for p.pos < len(p.lines) {
		trimmed := strings.TrimSpace(p.lines[p.pos])
		if strings.HasPrefix(trimmed, objectMarker) {
			root := p.parseObject(indentOf(p.lines[p.pos]), -1)
			p.tree.Roots = append(p.tree.Roots, root)
			continue
		}
		p.skipLine()
	}
	return p.tree, p.warnings
}

type reportParser struct {
	lines    []string
	pos      int
	norm     *Normalizer
	tree     *Tree
	warnings []ParseWarning
}

// parseObject consumes the object line at the cursor plus its more-indented
// body, returning the arena index of the new node.
func (p *reportParser) parseObject(indent, parent int) int {
	trimmed := strings.TrimSpace(p.lines[p.pos])
	fullPath := strings.TrimSpace(strings.TrimPrefix(trimmed, objectMarker))
	idx := p.tree.add(Node{
		FullPath:       fullPath,
		NormalizedPath: p.norm.Normalize(fullPath),
		Parent:         parent,
		Indent:         indent,
	})
	p.pos++

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			p.pos++
			continue
		}
		ind := indentOf(line)
		if ind <= indent {
			break
		}
		if strings.HasPrefix(trimmed, objectMarker) {
			child := p.parseObject(ind, idx)
			p.tree.Nodes[idx].Children = append(p.tree.Nodes[idx].Children, child)
			continue
		}
		if key, rest, ok := splitKeyValue(trimmed); ok {
			if rest == "" {
				block := p.parseBlockValue(ind)
				p.tree.Nodes[idx].Properties.Set(key, Scalar(block))
			} else {
				p.tree.Nodes[idx].Properties.Set(key, p.classifyValue(stripQuotes(rest)))
				p.pos++
			}
			continue
		}
		p.skipLine()
	}
	return idx
}

// parseBlockValue consumes the "key:" line at the cursor and every following
// line indented deeper than it, returning the newline-joined block text.
func (p *reportParser) parseBlockValue(keyIndent int) string {
	p.pos++
	var parts []string
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if indentOf(line) <= keyIndent {
			break
		}
		parts = append(parts, stripQuotes(strings.TrimSpace(line)))
		p.pos++
	}
	return strings.Join(parts, "\n")
}

// classifyValue tags a scalar once at parse time: comma-separated values are
// reference lists, a single dotted value whose head is a recognizable type
// token is a single reference, everything else stays a plain scalar.
func (p *reportParser) classifyValue(raw string) Value {
	if strings.Contains(raw, ",") {
		return Value{Kind: ValueTypeRefList, Raw: raw, Refs: p.norm.NormalizeList(raw)}
	}
	if strings.Count(raw, ".") == 1 {
		head := raw[:strings.Index(raw, ".")]
		if p.norm.IsTypeToken(head) {
			return Value{Kind: ValueTypeRef, Raw: raw, Refs: []string{p.norm.Normalize(raw)}}
		}
	}
	return Scalar(raw)
}

// skipLine advances past a line that fits no production, recording a warning
// for non-blank content.
func (p *reportParser) skipLine() {
	if text := strings.TrimSpace(p.lines[p.pos]); text != "" {
		p.warnings = append(p.warnings, ParseWarning{Line: p.pos + 1, Text: text})
	}
	p.pos++
}

// splitKeyValue splits a trimmed body line of the form `key: "value"` or
// `key:`. Keys are 1C attribute identifiers: non-empty, no spaces or quotes.
func splitKeyValue(trimmed string) (key, rest string, ok bool) {
	i := strings.Index(trimmed, ":")
	if i <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:i])
	if key == "" || strings.ContainsAny(key, " \"") {
		return "", "", false
	}
	return key, strings.TrimSpace(trimmed[i+1:]), true
}

// stripQuotes removes one pair of surrounding double quotes, if present.
func stripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// indentOf counts leading spaces. Tabs are expanded before parsing.
func indentOf(line string) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}
