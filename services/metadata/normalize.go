// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import "strings"

// RefSuffix is the reference suffix of 1C type names
// ("СправочникСсылка" names a reference to "Справочник").
const RefSuffix = "Ссылка"

// Normalizer canonicalizes 1C type paths: plural type names are rewritten to
// singular form and the reference suffix is stripped.
//
// Thread Safety:
//
//	The tables are fixed at construction; a Normalizer is safe for
//	unsynchronized concurrent reads.
type Normalizer struct {
	singularToPlural map[string]string
	pluralToSingular map[string]string
}

// NewNormalizer returns a Normalizer with the fixed table of known 1C
// metadata types.
func NewNormalizer() *Normalizer {
	singular := map[string]string{
		"Справочник":             "Справочники",
		"Документ":               "Документы",
		"Перечисление":           "Перечисления",
		"Отчет":                  "Отчеты",
		"Обработка":              "Обработки",
		"ПланВидовХарактеристик": "ПланыВидовХарактеристик",
		"ПланСчетов":             "ПланыСчетов",
		"РегистрСведений":        "РегистрыСведений",
		"РегистрНакопления":      "РегистрыНакопления",
		"БизнесПроцесс":          "БизнесПроцессы",
		"Задача":                 "Задачи",
		"Константа":              "Константы",
		"ОбщийМодуль":            "ОбщиеМодули",
		// Subsystems only ever appear in plural form.
		"Подсистемы": "Подсистемы",
	}
	plural := make(map[string]string, len(singular))
	for s, p := range singular {
		plural[p] = s
	}
	return &Normalizer{singularToPlural: singular, pluralToSingular: plural}
}

// Normalize canonicalizes the leading type segment of path.
//
// The type part (everything before the first dot, or the whole string) is
// stripped of the reference suffix and rewritten to singular form. When a
// name part follows, the rewrite happens only if the resolved type is a
// known type; otherwise the input is returned unchanged so that free-text
// queries containing a dot pass through uncorrupted.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(path string) string {
	typePart := path
	namePart := ""
	hasName := false
	if i := strings.Index(path, "."); i >= 0 {
		typePart = path[:i]
		namePart = path[i+1:]
		hasName = true
	}

	typePart = strings.TrimSuffix(typePart, RefSuffix)

	singular, known := n.pluralToSingular[typePart]
	if !known {
		singular = typePart
	}

	if !hasName {
		return singular
	}
	if _, ok := n.singularToPlural[singular]; !ok {
		return path
	}
	return singular + "." + namePart
}

// Plural returns the plural form of a singular type name. Unknown types are
// returned unchanged.
func (n *Normalizer) Plural(singular string) string {
	if p, ok := n.singularToPlural[singular]; ok {
		return p
	}
	return singular
}

// IsTypeToken reports whether token names a known type directly, in plural
// form, or in reference-suffix form. Used to decide whether a dotted scalar
// value is a type reference at all.
func (n *Normalizer) IsTypeToken(token string) bool {
	token = strings.TrimSuffix(token, RefSuffix)
	if _, ok := n.singularToPlural[token]; ok {
		return true
	}
	_, ok := n.pluralToSingular[token]
	return ok
}

// NormalizeList normalizes each element of a comma-separated reference list
// independently.
func (n *Normalizer) NormalizeList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, n.Normalize(strings.TrimSpace(p)))
	}
	return out
}
