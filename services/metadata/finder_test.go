// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import "testing"

func TestFindObjects(t *testing.T) {
	tree := parseSample(t)

	t.Run("by normalized path", func(t *testing.T) {
		got := FindObjects(tree, "Справочник.Валюты", 5)
		if len(got) != 1 {
			t.Fatalf("matches = %d, want 1", len(got))
		}
		if tree.Node(got[0]).FullPath != "Справочник.Валюты" {
			t.Errorf("match = %q", tree.Node(got[0]).FullPath)
		}
	})

	t.Run("by display property", func(t *testing.T) {
		got := FindObjects(tree, "Платеж", 5)
		if len(got) != 1 || tree.Node(got[0]).FullPath != "Документ.Платеж" {
			t.Fatalf("matches = %v", got)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		got := FindObjects(tree, "пЛаТеЖ", 5)
		if len(got) != 1 {
			t.Errorf("matches = %d, want 1", len(got))
		}
	})

	t.Run("limit respected", func(t *testing.T) {
		got := FindObjects(tree, "Справочник", 1)
		if len(got) != 1 {
			t.Errorf("matches = %d, want 1", len(got))
		}
	})

	t.Run("match terminates branch", func(t *testing.T) {
		// "Валюты" matches the catalog root; its attribute nodes must not
		// be returned even though their paths contain the query too.
		got := FindObjects(tree, "Валюты", 10)
		for _, idx := range got {
			if tree.Node(idx).FullPath == "Справочник.Валюты.Реквизиты.Наименование" {
				t.Errorf("descendant of a match returned: %v", got)
			}
		}
	})

	t.Run("deep nodes never candidates", func(t *testing.T) {
		got := FindObjects(tree, "Наименование", 10)
		if len(got) != 0 {
			t.Errorf("nested attribute matched: %v", got)
		}
	})

	t.Run("no match", func(t *testing.T) {
		if got := FindObjects(tree, "Несуществующее", 5); len(got) != 0 {
			t.Errorf("matches = %v", got)
		}
	})

	t.Run("empty tree", func(t *testing.T) {
		if got := FindObjects(&Tree{}, "x", 5); got != nil {
			t.Errorf("matches = %v", got)
		}
	})
}

func TestCleanNode(t *testing.T) {
	tree := parseSample(t)

	obj := CleanNode(tree, tree.Roots[0])
	if obj.FullPath != "Справочник.Валюты" {
		t.Errorf("full path = %q", obj.FullPath)
	}
	if got := obj.Properties.Get(PropName); got != "Валюты" {
		t.Errorf("Имя = %q", got)
	}
	if len(obj.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(obj.Children))
	}
	if got := obj.Children[1].Properties.Get("Тип"); got != "СправочникСсылка.Банки" {
		t.Errorf("child raw value = %q", got)
	}
	for _, e := range obj.Children[1].Properties {
		if e.Name == "Тип"+shadowSuffix {
			t.Errorf("shadow key leaked into result")
		}
	}
}
