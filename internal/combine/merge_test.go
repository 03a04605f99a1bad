package combine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"buildings/internal/types"
)

func passport(address string, extra map[string]string) types.Record {
	rec := types.Record{"Адрес": address}
	for k, v := range extra {
		rec[k] = v
	}
	return rec
}

func TestMergeAllFields(t *testing.T) {
	cw := []types.Building{
		{Street: "Невский пр.", Address: "Невский пр., 28", Title: "Дом Зингера"},
	}
	od := []types.Record{
		passport("Санкт-Петербург, Невский пр., 28", map[string]string{"Площадь": "7000"}),
	}

	combined, stats := Merge(cw, od, zap.NewNop())

	require.Len(t, combined, 1)
	assert.Equal(t, types.MergeAllFields, combined[0].MergeKind)
	assert.Equal(t, "Невский пр., 28", combined[0].NormalizedAddress)
	assert.Equal(t, "Дом Зингера", combined[0].Citywalls.Title)
	assert.Equal(t, "7000", combined[0].Passport["Площадь"])
	assert.Equal(t, 1, stats.AllFields)
	assert.Equal(t, 1, stats.Total)
}

func TestMergeCascadeFallsBackToStreetHouse(t *testing.T) {
	// Letter on the citywalls side only: the exact pass misses, the
	// street+house pass matches.
	cw := []types.Building{
		{Street: "Садовая ул.", Address: "Садовая ул., 12 лит. Б"},
	}
	od := []types.Record{
		passport("Садовая ул., 12", nil),
	}

	combined, stats := Merge(cw, od, zap.NewNop())

	require.Len(t, combined, 1)
	assert.Equal(t, types.MergeStreetHouse, combined[0].MergeKind)
	assert.Equal(t, "Б", combined[0].Letter)
	assert.Equal(t, 0, stats.AllFields)
	assert.Equal(t, 1, stats.StreetHouse)
}

func TestMergeUnmatchedKeepSourceTags(t *testing.T) {
	cw := []types.Building{
		{Street: "Невский пр.", Address: "Невский пр., 28"},
	}
	od := []types.Record{
		passport("Лиговский пр., 44", nil),
	}

	combined, stats := Merge(cw, od, zap.NewNop())

	require.Len(t, combined, 2)
	kinds := map[string]int{}
	for _, c := range combined {
		kinds[c.MergeKind]++
	}
	assert.Equal(t, 1, kinds[types.MergeCitywallsOnly])
	assert.Equal(t, 1, kinds[types.MergeOpenDataOnly])
	assert.Equal(t, 1, stats.CitywallsOnly)
	assert.Equal(t, 1, stats.OpenDataOnly)
}

func TestMergeInnerJoinMultiplicity(t *testing.T) {
	// Two passports at the same address both pair with the one catalogue
	// entry.
	cw := []types.Building{
		{Street: "Невский пр.", Address: "Невский пр., 28"},
	}
	od := []types.Record{
		passport("Невский пр., 28", map[string]string{"Этажность": "5"}),
		passport("Невский пр., 28", map[string]string{"Этажность": "6"}),
	}

	combined, stats := Merge(cw, od, zap.NewNop())

	require.Len(t, combined, 2)
	for _, c := range combined {
		assert.Equal(t, types.MergeAllFields, c.MergeKind)
		assert.NotNil(t, c.Citywalls)
	}
	assert.Equal(t, 2, stats.AllFields)
}

func TestMergeMatchedRecordsLeaveCascade(t *testing.T) {
	// A record matched in an early pass must not match again later.
	cw := []types.Building{
		{Street: "Невский пр.", Address: "Невский пр., 28"},
		{Street: "Невский пр.", Address: "Невский пр., 28 лит. А"},
	}
	od := []types.Record{
		passport("Невский пр., 28", nil),
	}

	combined, stats := Merge(cw, od, zap.NewNop())

	require.Len(t, combined, 2)
	assert.Equal(t, 1, stats.AllFields)
	assert.Equal(t, 0, stats.StreetHouse)
	assert.Equal(t, 1, stats.CitywallsOnly)
}

func TestMergeCitywallsJSON(t *testing.T) {
	cw := []types.Building{
		{Street: "Невский пр.", Address: "Невский пр., 28", Title: "Дом Зингера", YearBuilt: "1902-1904"},
	}

	combined, _ := Merge(cw, nil, zap.NewNop())

	require.Len(t, combined, 1)
	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(combined[0].CitywallsJSON), &fields))
	assert.Equal(t, "Дом Зингера", fields["title"])
	assert.Equal(t, "1902-1904", fields["year_built"])
	assert.NotContains(t, fields, "style") // empty fields are dropped
}

func TestMergeRecordWithoutAddressColumn(t *testing.T) {
	od := []types.Record{{"Площадь": "100"}}

	combined, stats := Merge(nil, od, zap.NewNop())

	require.Len(t, combined, 1)
	assert.Equal(t, types.MergeOpenDataOnly, combined[0].MergeKind)
	assert.Equal(t, 1, stats.OpenDataOnly)
}

func TestAddressColumnPreference(t *testing.T) {
	// Two address-ish columns: the exact one must win every time, not
	// whichever the map happens to yield first.
	rec := types.Record{
		"Юридический адрес": "Московский пр., 100",
		"Адрес":             "Невский пр., 28",
		"Площадь":           "7000",
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, "Невский пр., 28", addressOf(rec))
	}

	// Without an exact column, qualified candidates are tried in sorted
	// order.
	rec = types.Record{
		"Фактический адрес": "Садовая ул., 12",
		"Адрес организации": "Литейный пр., 1",
	}
	for i := 0; i < 50; i++ {
		assert.Equal(t, "Литейный пр., 1", addressOf(rec))
	}
}

func TestMergeStableWithAmbiguousAddressColumns(t *testing.T) {
	cw := []types.Building{
		{Street: "Невский пр.", Address: "Невский пр., 28"},
	}
	od := []types.Record{
		{
			"Адрес":             "Санкт-Петербург, Невский пр., 28",
			"Юридический адрес": "Московский пр., 100",
		},
	}

	for i := 0; i < 20; i++ {
		combined, stats := Merge(cw, od, zap.NewNop())
		require.Len(t, combined, 1)
		assert.Equal(t, types.MergeAllFields, combined[0].MergeKind)
		assert.Equal(t, 1, stats.AllFields)
	}
}
