// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0640))
}

func newTestCatalog(t *testing.T, files map[string]string) *Catalog {
	t.Helper()
	input := t.TempDir()
	dist := t.TempDir()
	for name, content := range files {
		writeFile(t, input, name, content)
	}
	c := NewCatalog(CatalogConfig{InputDir: input, DistDir: dist})
	t.Cleanup(c.Stop)
	return c
}

func TestCatalogDiscovery(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"erp.json":                    `{"Имя": "ERP", "Синоним": "ERP для России", "Версия": "2.5"}`,
		"upp_report.txt":              sampleReport,
		".hidden.json":                `{}`,
		"metadata_configs_index.json": `{"configs": []}`,
		"readme.md":                   "not a metadata source",
	})

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "erp", entries[0].Base)
	assert.Equal(t, SourceJSON, entries[0].Kind)
	assert.Equal(t, "upp_report", entries[1].Base)
	assert.Equal(t, SourceReport, entries[1].Kind)

	entry, ok := c.Entry("erp")
	require.True(t, ok)
	assert.Equal(t, "erp.json", entry.File)

	_, ok = c.Entry("missing")
	assert.False(t, ok)
}

func TestCatalogSummariesAndIndex(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"erp.json":       `{"Имя": "ERP", "Синоним": "ERP для России", "Версия": "2.5"}`,
		"upp_report.txt": sampleReport,
	})

	summaries := c.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, ConfigSummary{File: "erp", Name: "ERP", Synonym: "ERP для России", Version: "2.5"}, summaries[0])
	// Report sources are not parsed during a scan.
	assert.Equal(t, ConfigSummary{File: "upp_report"}, summaries[1])

	// The index is persisted as {"configs": [...]}.
	data, err := os.ReadFile(c.IndexPath())
	require.NoError(t, err)
	var doc struct {
		Configs []ConfigSummary `json:"configs"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, summaries, doc.Configs)
}

func TestCatalogSummariesPreferPersistedIndex(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"erp.json": `{"Имя": "ERP"}`,
	})

	// Edit the persisted index by hand; Summaries must pick it up.
	edited := `{"configs": [{"file": "erp", "Имя": "Переименованная"}]}`
	require.NoError(t, os.WriteFile(c.IndexPath(), []byte(edited), 0640))

	summaries := c.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "Переименованная", summaries[0].Name)
}

func TestCatalogResolve(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"erp.json": `{"Имя": "ERP", "Синоним": "ERP для России"}`,
		"upp.json": `{"Имя": "УПП", "Синоним": "Управление производственным предприятием"}`,
	})

	t.Run("empty selector with several configs", func(t *testing.T) {
		_, diag := c.Resolve("")
		require.NotNil(t, diag)
		assert.Contains(t, diag.Message, "Найдено несколько конфигураций")
		assert.Len(t, diag.Configs, 2)
	})

	t.Run("exact base name", func(t *testing.T) {
		entry, diag := c.Resolve("erp")
		require.Nil(t, diag)
		assert.Equal(t, "erp", entry.Base)
	})

	t.Run("file name with extension", func(t *testing.T) {
		entry, diag := c.Resolve("UPP.JSON")
		require.Nil(t, diag)
		assert.Equal(t, "upp", entry.Base)
	})

	t.Run("by name", func(t *testing.T) {
		entry, diag := c.Resolve("УПП")
		require.Nil(t, diag)
		assert.Equal(t, "upp", entry.Base)
	})

	t.Run("by synonym", func(t *testing.T) {
		entry, diag := c.Resolve("ERP для России")
		require.Nil(t, diag)
		assert.Equal(t, "erp", entry.Base)
	})

	t.Run("unique substring", func(t *testing.T) {
		entry, diag := c.Resolve("производственным")
		require.Nil(t, diag)
		assert.Equal(t, "upp", entry.Base)
	})

	t.Run("ambiguous substring", func(t *testing.T) {
		_, diag := c.Resolve("p")
		require.NotNil(t, diag)
		assert.Contains(t, diag.Message, "Найдено несколько конфигураций по параметру")
	})

	t.Run("not found", func(t *testing.T) {
		_, diag := c.Resolve("несуществующая")
		require.NotNil(t, diag)
		assert.Contains(t, diag.Message, "не найдена")
		assert.Contains(t, diag.Text(), "Доступные конфигурации:")
		assert.Contains(t, diag.Text(), "- erp: ERP")
	})
}

func TestCatalogResolveSingleConfig(t *testing.T) {
	c := newTestCatalog(t, map[string]string{
		"erp.json": `{"Имя": "ERP"}`,
	})

	entry, diag := c.Resolve("")
	require.Nil(t, diag)
	assert.Equal(t, "erp", entry.Base)
}

func TestCatalogResolveNoConfigs(t *testing.T) {
	c := newTestCatalog(t, nil)

	_, diag := c.Resolve("")
	require.NotNil(t, diag)
	assert.Contains(t, diag.Message, "Не найдены конфигурации")
	assert.Contains(t, diag.Text(), "(конфигурации не найдены)")
}

func TestCatalogRescan(t *testing.T) {
	input := t.TempDir()
	dist := t.TempDir()
	c := NewCatalog(CatalogConfig{InputDir: input, DistDir: dist})
	t.Cleanup(c.Stop)
	require.Empty(t, c.Entries())

	writeFile(t, input, "new.json", `{"Имя": "Новая"}`)
	c.Rescan()

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Base)
}
