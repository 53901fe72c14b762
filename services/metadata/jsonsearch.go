// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadJSONMetadata reads a prepared JSON metadata file, tolerating a UTF-8
// BOM left by the exporter.
func LoadJSONMetadata(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode metadata file %s: %w", path, err)
	}
	return doc, nil
}

// jsonNameKeys identify a generic JSON object as a metadata object.
var jsonNameKeys = []string{PropFullName, PropName, PropSynonym}

// jsonSearchFields are the display fields matched by SearchJSON.
var jsonSearchFields = []string{
	PropName,
	PropSynonym,
	PropFullName,
	PropObjectView,
	PropObjectViewExt,
	PropListView,
	PropListViewExt,
}

// SearchJSON walks a generic JSON tree depth first and returns up to limit
// objects matching the query.
//
// Any object carrying one of the name-like fields is a candidate; the match
// is a case-insensitive substring test over the display fields. Unlike the
// report-tree finder, a match does not terminate the branch — nested
// attribute objects carry their own name fields and are searched too.
// Object keys are visited in sorted order so truncation by limit is
// deterministic.
func SearchJSON(root any, query string, limit int) []map[string]any {
	lower := strings.ToLower(query)
	var results []map[string]any

	var traverse func(node any)
	traverse = func(node any) {
		if len(results) >= limit {
			return
		}
		switch v := node.(type) {
		case map[string]any:
			if hasAnyKey(v, jsonNameKeys) && jsonObjectMatches(v, lower) {
				results = append(results, v)
				if len(results) >= limit {
					return
				}
			}
			for _, key := range sortedStringKeys(v) {
				switch v[key].(type) {
				case map[string]any, []any:
					traverse(v[key])
				}
			}
		case []any:
			for _, item := range v {
				traverse(item)
			}
		}
	}
	traverse(root)
	return results
}

// FindJSONReferences scans a generic JSON tree for metadata objects whose
// type-bearing string properties reference one of the target normalized full
// names, returning merged used-by entries grouped by the referencing
// object's plural top-level type.
func FindJSONReferences(root any, norm *Normalizer, targets map[string]bool) UsageGroups {
	if len(targets) == 0 {
		return nil
	}
	var groups UsageGroups

	var traverse func(node any)
	traverse = func(node any) {
		switch v := node.(type) {
		case map[string]any:
			fullName, _ := v[PropFullName].(string)
			if fullName != "" {
				scanJSONObject(v, fullName, norm, targets, &groups)
			}
			for _, key := range sortedStringKeys(v) {
				switch v[key].(type) {
				case map[string]any, []any:
					traverse(v[key])
				}
			}
		case []any:
			for _, item := range v {
				traverse(item)
			}
		}
	}
	traverse(root)
	return groups
}

// scanJSONObject checks the object's immediate string properties for
// references to a target. Nested objects are handled on their own visit.
func scanJSONObject(obj map[string]any, fullName string, norm *Normalizer, targets map[string]bool, groups *UsageGroups) {
	for _, key := range sortedStringKeys(obj) {
		raw, ok := obj[key].(string)
		if !ok || key == PropFullName {
			continue
		}
		for _, elem := range strings.Split(raw, ",") {
			normalized := norm.Normalize(strings.TrimSpace(elem))
			if !targets[normalized] {
				continue
			}
			plural := norm.Plural(leadingType(norm.Normalize(fullName)))
			entry := groups.add(plural, fullName)
			entry.addValue(key, raw)
			break
		}
	}
}

func leadingType(normalizedPath string) string {
	if i := strings.Index(normalizedPath, "."); i >= 0 {
		return normalizedPath[:i]
	}
	return normalizedPath
}

func hasAnyKey(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func jsonObjectMatches(obj map[string]any, lowerQuery string) bool {
	for _, field := range jsonSearchFields {
		if s, ok := obj[field].(string); ok {
			if strings.Contains(strings.ToLower(s), lowerQuery) {
				return true
			}
		}
	}
	return false
}

func sortedStringKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
