package designsvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffIdenticalSnapshots(t *testing.T) {
	doc := []byte(`{"a":1,"b":{"c":"x"}}`)
	changes, sum, err := DiffSnapshots(doc, doc)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, DiffSummary{}, sum)
}

func TestDiffAddedRemovedModified(t *testing.T) {
	a := []byte(`{"keep":"same","gone":"old","changed":1}`)
	b := []byte(`{"keep":"same","fresh":"new","changed":2}`)
	changes, sum, err := DiffSnapshots(a, b)
	require.NoError(t, err)

	byPath := map[string]Change{}
	for _, c := range changes {
		byPath[c.Path] = c
	}
	require.Len(t, changes, 3)
	assert.Equal(t, OpModified, byPath["changed"].Operation)
	assert.Equal(t, OpRemoved, byPath["gone"].Operation)
	assert.Equal(t, "old", byPath["gone"].OldValue)
	assert.Equal(t, OpAdded, byPath["fresh"].Operation)
	assert.Equal(t, "new", byPath["fresh"].NewValue)

	assert.Equal(t, DiffSummary{TotalChanges: 3, Added: 1, Removed: 1, Modified: 1}, sum)
	assert.Equal(t, sum.TotalChanges, sum.Added+sum.Removed+sum.Modified)
}

func TestDiffNestedPath(t *testing.T) {
	a := []byte(`{"requirements":{"totalUsers":"1-50"}}`)
	b := []byte(`{"requirements":{"totalUsers":"51-200"}}`)
	changes, sum, err := DiffSnapshots(a, b)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "requirements.totalUsers", changes[0].Path)
	assert.Equal(t, OpModified, changes[0].Operation)
	assert.Equal(t, "1-50", changes[0].OldValue)
	assert.Equal(t, "51-200", changes[0].NewValue)
	assert.Equal(t, DiffSummary{TotalChanges: 1, Modified: 1}, sum)
}

func TestDiffArrayElements(t *testing.T) {
	a := []byte(`{"vlans":[10,20]}`)
	b := []byte(`{"vlans":[10,30,40]}`)
	changes, sum, err := DiffSnapshots(a, b)
	require.NoError(t, err)

	byPath := map[string]Change{}
	for _, c := range changes {
		byPath[c.Path] = c
	}
	require.Len(t, changes, 2)
	assert.Equal(t, OpModified, byPath["vlans[1]"].Operation)
	assert.Equal(t, OpAdded, byPath["vlans[2]"].Operation)
	assert.Equal(t, 2, sum.TotalChanges)
}

func TestDiffTypeChangeIsModified(t *testing.T) {
	a := []byte(`{"x":{"nested":true}}`)
	b := []byte(`{"x":"flat"}`)
	changes, _, err := DiffSnapshots(a, b)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "x", changes[0].Path)
	assert.Equal(t, OpModified, changes[0].Operation)
}

func TestDiffRejectsBrokenJSON(t *testing.T) {
	_, _, err := DiffSnapshots([]byte(`{"ok":1}`), []byte(`{broken`))
	assert.Error(t, err)
}
