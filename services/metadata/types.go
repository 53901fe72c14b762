// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package metadata indexes 1C:Enterprise configuration metadata and answers
// search queries against it.
//
// Two source formats are supported:
//   - Indented text reports exported from the configurator. These are parsed
//     into a typed tree (see ParseReport) and cached in BadgerDB.
//   - Prepared JSON metadata files. These are searched generically without
//     building a typed tree (see SearchJSON).
//
// The service exposes a single logical operation, Search, which covers fuzzy
// object lookup and reverse-usage resolution over either source kind.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known display property names of 1C metadata objects.
const (
	PropName            = "Имя"
	PropSynonym         = "Синоним"
	PropFullName        = "ПолноеИмя"
	PropVersion         = "Версия"
	PropObjectView      = "ПредставлениеОбъекта"
	PropObjectViewExt   = "РасширенноеПредставлениеОбъекта"
	PropListView        = "ПредставлениеСписка"
	PropListViewExt     = "РасширенноеПредставлениеСписка"
)

// shadowSuffix marks internal normalized-reference keys. Such keys never
// appear in anything returned to a caller.
const shadowSuffix = "_normalized"

// Sentinel errors returned by the metadata service.
var (
	// ErrCorruptCache indicates a cached tree could not be deserialized.
	ErrCorruptCache = errors.New("metadata: corrupt cached tree")

	// ErrUnknownSourceKind indicates a discovered source file has an
	// unsupported extension.
	ErrUnknownSourceKind = errors.New("metadata: unknown source kind")

	// ErrCacheClosed indicates an operation on a closed tree cache.
	ErrCacheClosed = errors.New("metadata: tree cache is closed")
)

// ValueKind discriminates the shape of a parsed property value.
//
// The shape is decided once at parse time; consumers never re-inspect the
// raw string.
type ValueKind string

const (
	// ValueScalar is a plain string value.
	ValueScalar ValueKind = "scalar"

	// ValueTypeRef is a single dotted type reference, e.g.
	// "СправочникСсылка.Валюты".
	ValueTypeRef ValueKind = "type_ref"

	// ValueTypeRefList is a comma-separated list of type references.
	ValueTypeRefList ValueKind = "type_ref_list"
)

// Value is a parsed property value.
//
// Raw always holds the source text exactly as written. For type references
// Refs holds the normalized form(s); Refs is the internal shadow state that
// replaces the historical "<key>_normalized" entries and is stripped from
// every result returned to a caller.
type Value struct {
	Kind ValueKind `json:"kind"`
	Raw  string    `json:"raw"`
	Refs []string  `json:"refs,omitempty"`
}

// Scalar returns a plain scalar Value.
func Scalar(raw string) Value {
	return Value{Kind: ValueScalar, Raw: raw}
}

// Property is one named attribute of a metadata object.
type Property struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Properties is an ordered attribute list. Order follows the source file and
// is preserved across cache round-trips.
type Properties []Property

// Get returns the value stored under key.
func (p Properties) Get(key string) (Value, bool) {
	for i := range p {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return Value{}, false
}

// GetRaw returns the raw string stored under key, or "" if absent.
func (p Properties) GetRaw(key string) string {
	v, ok := p.Get(key)
	if !ok {
		return ""
	}
	return v.Raw
}

// Set stores value under key, replacing an existing entry in place.
func (p *Properties) Set(key string, v Value) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = v
			return
		}
	}
	*p = append(*p, Property{Key: key, Value: v})
}

// Node is one parsed metadata object.
//
// Nodes live in a Tree arena and refer to each other by index. A node is
// owned by exactly one parent (Parent == -1 for forest roots); the source
// format is indentation based and cannot express cycles.
type Node struct {
	// FullPath is the object path exactly as written in the source,
	// e.g. "Документ.Счет.Реквизиты.Сумма".
	FullPath string `json:"full_path"`

	// NormalizedPath is FullPath with its leading type segment normalized
	// to singular form and the reference suffix removed. Computed once at
	// parse time and never mutated.
	NormalizedPath string `json:"normalized_path"`

	// Properties are the object's attributes in source order.
	Properties Properties `json:"properties,omitempty"`

	// Children are arena indices of nested objects in source order. Every
	// child's source indentation is strictly greater than the node's own.
	Children []int `json:"children,omitempty"`

	// Parent is the arena index of the owning node, -1 for roots.
	Parent int `json:"parent"`

	// Indent is the node's source indentation in spaces.
	Indent int `json:"indent"`
}

// Tree is an arena-allocated forest of metadata objects.
//
// Thread Safety:
//
//	A Tree is immutable once built and safe for unsynchronized concurrent
//	reads. No component mutates nodes after construction completes.
type Tree struct {
	Nodes []Node `json:"nodes"`
	Roots []int  `json:"roots"`
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.Nodes) }

// Empty reports whether the forest has no roots. Callers must treat an
// empty tree as "no data", not as an error.
func (t *Tree) Empty() bool { return t == nil || len(t.Roots) == 0 }

// Node returns the node at arena index i.
func (t *Tree) Node(i int) *Node { return &t.Nodes[i] }

// add appends a node to the arena and returns its index.
func (t *Tree) add(n Node) int {
	t.Nodes = append(t.Nodes, n)
	return len(t.Nodes) - 1
}

// ParseWarning records a source line the parser could not interpret.
// Parsing is total; warnings are informational only.
type ParseWarning struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// PropertyEntry is one cleaned attribute of a result object.
type PropertyEntry struct {
	Name  string
	Value string
}

// PropertyMap is an ordered name→value mapping rendered to callers.
// It marshals as a JSON object whose keys keep insertion order.
type PropertyMap []PropertyEntry

// Get returns the value stored under name, or "" if absent.
func (m PropertyMap) Get(name string) string {
	for i := range m {
		if m[i].Name == name {
			return m[i].Value
		}
	}
	return ""
}

// MarshalJSON renders the mapping as an object preserving entry order.
func (m PropertyMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts the object form produced by MarshalJSON. Key order
// within the JSON object is preserved.
func (m *PropertyMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata: property map must be a JSON object")
	}
	out := PropertyMap{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var val string
		if err := dec.Decode(&val); err != nil {
			return err
		}
		out = append(out, PropertyEntry{Name: key, Value: val})
	}
	*m = out
	return nil
}

// ResultObject is a cleaned metadata object as returned to callers.
// It never contains shadow-normalized state.
type ResultObject struct {
	FullPath   string          `json:"full_path"`
	Properties PropertyMap     `json:"properties,omitempty"`
	Children   []*ResultObject `json:"children,omitempty"`
}

// UsageProperty is one referencing property of a used-by entry. A property
// holds one value until a merge collides on the same name, after which it
// holds a list.
type UsageProperty struct {
	Name   string
	Values []string
}

// UsageEntry names an object that references a search target, together with
// the specific properties that held the reference.
type UsageEntry struct {
	FullPath   string
	Properties []UsageProperty
}

// addValue records a referencing value under name, listifying on collision.
func (e *UsageEntry) addValue(name, value string) {
	for i := range e.Properties {
		if e.Properties[i].Name == name {
			for _, v := range e.Properties[i].Values {
				if v == value {
					return
				}
			}
			e.Properties[i].Values = append(e.Properties[i].Values, value)
			return
		}
	}
	e.Properties = append(e.Properties, UsageProperty{Name: name, Values: []string{value}})
}

// MarshalJSON renders the entry as {"ПолноеИмя": ..., "<prop>": value-or-list}.
func (e *UsageEntry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	k, err := json.Marshal(PropFullName)
	if err != nil {
		return nil, err
	}
	v, err := json.Marshal(e.FullPath)
	if err != nil {
		return nil, err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	for _, p := range e.Properties {
		buf.WriteByte(',')
		k, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		var pv []byte
		if len(p.Values) == 1 {
			pv, err = json.Marshal(p.Values[0])
		} else {
			pv, err = json.Marshal(p.Values)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(pv)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UsageGroup holds the used-by entries for one referencing top-level type.
// Type is the plural type name, e.g. "Документы".
type UsageGroup struct {
	Type    string
	Entries []*UsageEntry
}

// UsageGroups is the grouped result of a usage query, ordered by first
// appearance of each referencing type.
type UsageGroups []UsageGroup

// MarshalJSON renders the groups as {"Документы": [...], ...} in order.
func (g UsageGroups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, grp := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(grp.Type)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(grp.Entries)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// add appends entry under the given plural type, creating the group on
// first use and merging entries sharing the same referencing object.
func (g *UsageGroups) add(pluralType string, fullPath string) *UsageEntry {
	for i := range *g {
		if (*g)[i].Type != pluralType {
			continue
		}
		for _, e := range (*g)[i].Entries {
			if e.FullPath == fullPath {
				return e
			}
		}
		e := &UsageEntry{FullPath: fullPath}
		(*g)[i].Entries = append((*g)[i].Entries, e)
		return e
	}
	e := &UsageEntry{FullPath: fullPath}
	*g = append(*g, UsageGroup{Type: pluralType, Entries: []*UsageEntry{e}})
	return e
}

// ConfigSummary is one entry of the configuration index.
type ConfigSummary struct {
	File    string `json:"file"`
	Name    string `json:"Имя"`
	Synonym string `json:"Синоним"`
	Version string `json:"Версия,omitempty"`
}

// Status discriminates search outcomes.
type Status string

const (
	// StatusSuccess carries result payload.
	StatusSuccess Status = "success"

	// StatusAmbiguous carries configuration-selection guidance.
	StatusAmbiguous Status = "ambiguous"

	// StatusError carries a human-readable failure description.
	StatusError Status = "error"
)

// Outcome is the discriminated result of a Search call. It replaces any
// shared "last diagnostic" state: everything a caller needs to know about
// one request is returned from that request.
type Outcome struct {
	Status Status

	// Objects holds cleaned metadata objects for fuzzy and subtree queries.
	Objects []*ResultObject

	// Usages holds grouped used-by entries for usage queries.
	Usages UsageGroups

	// RawObjects holds JSON-variant results (generic JSON objects).
	RawObjects []map[string]any

	// Warnings lists source lines skipped during parsing, when the tree
	// was built (rather than loaded) for this request.
	Warnings []ParseWarning

	// Message describes an ambiguous selection or a failure.
	Message string

	// Choices lists available configurations for ambiguous selections.
	Choices []ConfigSummary
}

// SuccessOutcome returns a success outcome with the given objects.
func SuccessOutcome(objects []*ResultObject) Outcome {
	return Outcome{Status: StatusSuccess, Objects: objects}
}

// AmbiguousOutcome returns a selection-guidance outcome.
func AmbiguousOutcome(message string, choices []ConfigSummary) Outcome {
	return Outcome{Status: StatusAmbiguous, Message: message, Choices: choices}
}

// FailureOutcome returns an error outcome with a description.
func FailureOutcome(message string) Outcome {
	return Outcome{Status: StatusError, Message: message}
}
