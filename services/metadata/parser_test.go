// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"strings"
	"testing"
)

// sampleReport is a small configurator report used across package tests.
const sampleReport = `- Справочник.Валюты
    Имя: "Валюты"
    Синоним: "Валюты"
    - Справочник.Валюты.Реквизиты.Наименование
        Имя: "Наименование"
        Тип: "Строка"
    - Справочник.Валюты.Реквизиты.Банк
        Имя: "Банк"
        Тип: "СправочникСсылка.Банки"
- Справочник.Банки
    Имя: "Банки"
    Синоним: "Банки"
- Документ.Платеж
    Имя: "Платеж"
    Синоним: "Платеж"
    - Документ.Платеж.Реквизиты.Валюта
        Имя: "Валюта"
        Тип: "СправочникСсылка.Валюты"
    - Документ.Платеж.Реквизиты.Источник
        Имя: "Источник"
        Тип: "СправочникСсылка.Банки, СправочникСсылка.Валюты"
`

func parseSample(t *testing.T) *Tree {
	t.Helper()
	tree, warnings := ParseReport(SplitLines(sampleReport), NewNormalizer())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return tree
}

func TestParseReportStructure(t *testing.T) {
	tree := parseSample(t)

	if len(tree.Roots) != 3 {
		t.Fatalf("roots = %d, want 3", len(tree.Roots))
	}

	root := tree.Node(tree.Roots[0])
	if root.FullPath != "Справочник.Валюты" {
		t.Errorf("root path = %q", root.FullPath)
	}
	if root.NormalizedPath != "Справочник.Валюты" {
		t.Errorf("root normalized = %q", root.NormalizedPath)
	}
	if got := root.Properties.GetRaw(PropName); got != "Валюты" {
		t.Errorf("root Имя = %q", got)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root children = %d, want 2", len(root.Children))
	}

	attr := tree.Node(root.Children[1])
	if attr.FullPath != "Справочник.Валюты.Реквизиты.Банк" {
		t.Errorf("child path = %q", attr.FullPath)
	}
	if attr.Parent != tree.Roots[0] {
		t.Errorf("child parent = %d, want %d", attr.Parent, tree.Roots[0])
	}
}

func TestParseReportDepthLaw(t *testing.T) {
	tree := parseSample(t)

	for i := range tree.Nodes {
		node := tree.Node(i)
		if node.Parent < 0 {
			continue
		}
		parent := tree.Node(node.Parent)
		if node.Indent <= parent.Indent {
			t.Errorf("node %q indent %d not deeper than parent %q indent %d",
				node.FullPath, node.Indent, parent.FullPath, parent.Indent)
		}
	}
}

func TestParseReportArenaDocumentOrder(t *testing.T) {
	tree := parseSample(t)

	for i := range tree.Nodes {
		for _, child := range tree.Node(i).Children {
			if child <= i {
				t.Errorf("child index %d not after parent %d", child, i)
			}
		}
	}
}

func TestParseReportValueClassification(t *testing.T) {
	tree := parseSample(t)

	// plain scalar
	naming := tree.Node(tree.Node(tree.Roots[0]).Children[0])
	v, ok := naming.Properties.Get("Тип")
	if !ok || v.Kind != ValueScalar {
		t.Errorf("Тип of Наименование: kind = %v, want scalar", v.Kind)
	}

	// single reference
	bank := tree.Node(tree.Node(tree.Roots[0]).Children[1])
	v, _ = bank.Properties.Get("Тип")
	if v.Kind != ValueTypeRef {
		t.Fatalf("Тип of Банк: kind = %v, want type_ref", v.Kind)
	}
	if v.Raw != "СправочникСсылка.Банки" {
		t.Errorf("raw preserved = %q", v.Raw)
	}
	if len(v.Refs) != 1 || v.Refs[0] != "Справочник.Банки" {
		t.Errorf("refs = %v", v.Refs)
	}

	// reference list
	src := tree.Node(tree.Node(tree.Roots[2]).Children[1])
	v, _ = src.Properties.Get("Тип")
	if v.Kind != ValueTypeRefList {
		t.Fatalf("Тип of Источник: kind = %v, want type_ref_list", v.Kind)
	}
	if len(v.Refs) != 2 || v.Refs[0] != "Справочник.Банки" || v.Refs[1] != "Справочник.Валюты" {
		t.Errorf("refs = %v", v.Refs)
	}
}

func TestParseReportBlockValue(t *testing.T) {
	report := strings.Join([]string{
		`- Справочник.Валюты`,
		`    Комментарий:`,
		`        "первая строка"`,
		`        "вторая строка"`,
		`    Имя: "Валюты"`,
	}, "\n")

	tree, warnings := ParseReport(SplitLines(report), NewNormalizer())
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", warnings)
	}
	root := tree.Node(tree.Roots[0])
	if got := root.Properties.GetRaw("Комментарий"); got != "первая строка\nвторая строка" {
		t.Errorf("block value = %q", got)
	}
	if got := root.Properties.GetRaw(PropName); got != "Валюты" {
		t.Errorf("property after block = %q", got)
	}
}

func TestParseReportTotalWithWarnings(t *testing.T) {
	report := strings.Join([]string{
		`мусорная строка до первого объекта`,
		`- Справочник.Валюты`,
		`    Имя: "Валюты"`,
		`    "строка без ключа"`,
		``,
		`- Справочник.Банки`,
	}, "\n")

	tree, warnings := ParseReport(SplitLines(report), NewNormalizer())
	if len(tree.Roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(tree.Roots))
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 entries", warnings)
	}
	if warnings[0].Line != 1 {
		t.Errorf("first warning line = %d, want 1", warnings[0].Line)
	}
}

func TestParseReportEmptyInput(t *testing.T) {
	tree, warnings := ParseReport(nil, NewNormalizer())
	if !tree.Empty() {
		t.Error("empty input should produce an empty tree")
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
}
