// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, files map[string]string) *Service {
	t.Helper()
	catalog := newTestCatalog(t, files)
	cache := newTestCache(t)
	svc, err := NewService(ServiceConfig{Catalog: catalog, Cache: cache})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresCatalog(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)
}

func TestSearchReportFuzzy(t *testing.T) {
	svc := newTestService(t, map[string]string{"upp.txt": sampleReport})

	out := svc.Search(context.Background(), SearchRequest{Query: "Справочники.Валюты"})
	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, out.Objects, 1)
	assert.Equal(t, "Справочник.Валюты", out.Objects[0].FullPath)
	assert.Equal(t, "Валюты", out.Objects[0].Properties.Get(PropName))
	assert.Empty(t, out.Usages)
}

func TestSearchReportUsages(t *testing.T) {
	svc := newTestService(t, map[string]string{"upp.txt": sampleReport})

	out := svc.Search(context.Background(), SearchRequest{
		Query:      "Справочники.Валюты",
		FindUsages: true,
	})
	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, out.Objects, 1)
	require.Len(t, out.Usages, 1)
	assert.Equal(t, "Документы", out.Usages[0].Type)
	assert.Len(t, out.Usages[0].Entries, 2)
}

func TestSearchJSONVariant(t *testing.T) {
	svc := newTestService(t, map[string]string{
		"erp.json": `{
			"Имя": "ERP",
			"Справочники": [
				{"Имя": "Номенклатура", "ПолноеИмя": "Справочник.Номенклатура"}
			],
			"Документы": [
				{"Имя": "Заказ", "ПолноеИмя": "Документ.Заказ", "Основание": "СправочникСсылка.Номенклатура"}
			]
		}`,
	})

	out := svc.Search(context.Background(), SearchRequest{Query: "Справочники.Номенклатура"})
	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, out.RawObjects, 1)
	assert.Equal(t, "Номенклатура", out.RawObjects[0]["Имя"])

	out = svc.Search(context.Background(), SearchRequest{
		Query:      "Справочники.Номенклатура",
		FindUsages: true,
	})
	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, out.Usages, 1)
	assert.Equal(t, "Документы", out.Usages[0].Type)
}

func TestSearchAmbiguousConfig(t *testing.T) {
	svc := newTestService(t, map[string]string{
		"a.json": `{"Имя": "А"}`,
		"b.json": `{"Имя": "Б"}`,
	})

	out := svc.Search(context.Background(), SearchRequest{Query: "x"})
	require.Equal(t, StatusAmbiguous, out.Status)
	assert.Contains(t, out.Message, "Укажите параметр 'config'")
	assert.Len(t, out.Choices, 2)

	out = svc.Search(context.Background(), SearchRequest{Query: "x", Config: "b"})
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestSearchUnknownConfig(t *testing.T) {
	svc := newTestService(t, map[string]string{"a.json": `{"Имя": "А"}`})

	out := svc.Search(context.Background(), SearchRequest{Query: "x", Config: "нет"})
	require.Equal(t, StatusAmbiguous, out.Status)
	assert.Contains(t, out.Message, "не найдена")
}

func TestSearchLimitDefaulting(t *testing.T) {
	svc := newTestService(t, map[string]string{"upp.txt": sampleReport})

	// A zero or negative limit falls back to the default instead of
	// returning nothing.
	out := svc.Search(context.Background(), SearchRequest{Query: "Справочник", Limit: -3})
	require.Equal(t, StatusSuccess, out.Status)
	assert.NotEmpty(t, out.Objects)

	out = svc.Search(context.Background(), SearchRequest{Query: "Справочник", Limit: 1})
	assert.Len(t, out.Objects, 1)
}

func TestSearchCanceledContext(t *testing.T) {
	svc := newTestService(t, map[string]string{"upp.txt": sampleReport})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := svc.Search(ctx, SearchRequest{Query: "x"})
	assert.Equal(t, StatusError, out.Status)
}

func TestInvalidateCaches(t *testing.T) {
	svc := newTestService(t, map[string]string{"upp.txt": sampleReport})

	out := svc.Search(context.Background(), SearchRequest{Query: "Платеж"})
	require.Equal(t, StatusSuccess, out.Status)

	svc.InvalidateCaches()

	out = svc.Search(context.Background(), SearchRequest{Query: "Платеж"})
	require.Equal(t, StatusSuccess, out.Status)
	assert.Len(t, out.Objects, 1)
}

func TestConfigsListing(t *testing.T) {
	svc := newTestService(t, map[string]string{
		"erp.json": `{"Имя": "ERP", "Версия": "2.5"}`,
	})

	configs := svc.Configs()
	require.Len(t, configs, 1)
	assert.Equal(t, "ERP", configs[0].Name)
}
