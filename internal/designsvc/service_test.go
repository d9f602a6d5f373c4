package designsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"netweave/internal/apperr"
	"netweave/internal/db"
	"netweave/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	d, err := db.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(
		&models.NetworkDesign{},
		&models.DesignVersion{},
	))
	return NewService(NewRepo(d), nil, time.Minute, nil)
}

func seedDesign(t *testing.T, s *Service, owner, doc string) *models.NetworkDesign {
	t.Helper()
	d, err := s.CreateDesign(context.Background(), owner, DesignInput{Name: "seed", Document: json.RawMessage(doc)})
	require.NoError(t, err)
	return d
}

// ── version numbering ───────────────────────────────────────

func TestFirstVersionIsInitial(t *testing.T) {
	s := newTestService(t)
	d := seedDesign(t, s, "u1", `{"designName":"Office A"}`)

	for _, bump := range []string{"major", "minor", "patch"} {
		next, err := s.NextVersion(d.ID, bump)
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", next, bump)
	}
}

func TestNextVersionBumps(t *testing.T) {
	s := newTestService(t)
	d := seedDesign(t, s, "u1", `{"designName":"Office A"}`)
	require.NoError(t, s.repo.CreateVersion(&models.DesignVersion{
		DesignID: d.ID, Version: "1.2.5", Snapshot: []byte(`{}`), CreatedBy: "u1",
	}))

	next, err := s.NextVersion(d.ID, "minor")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", next)

	next, err = s.NextVersion(d.ID, "major")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", next)

	next, err = s.NextVersion(d.ID, "patch")
	require.NoError(t, err)
	assert.Equal(t, "1.2.6", next)
}

func TestNextVersionRejectsUnknownBump(t *testing.T) {
	s := newTestService(t)
	d := seedDesign(t, s, "u1", `{}`)
	_, err := s.NextVersion(d.ID, "gigantic")
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestCreateVersionSequenceIsMonotonic(t *testing.T) {
	s := newTestService(t)
	d := seedDesign(t, s, "u1", `{"designName":"Office A"}`)

	want := []string{"1.0.0", "1.1.0", "1.1.1", "2.0.0"}
	bumps := []string{"minor", "minor", "patch", "major"}
	for i, bump := range bumps {
		v, err := s.CreateVersion(context.Background(), "u1", d.ID, CreateVersionInput{VersionBump: bump})
		require.NoError(t, err)
		assert.Equal(t, want[i], v.Version)
	}
}

func TestCreateVersionDuplicateNumberConflicts(t *testing.T) {
	s := newTestService(t)
	d := seedDesign(t, s, "u1", `{}`)

	// Both racers computed the same next version; the unique index makes
	// the second writer lose.
	require.NoError(t, s.repo.CreateVersion(&models.DesignVersion{
		DesignID: d.ID, Version: "1.0.0", Snapshot: []byte(`{}`), CreatedBy: "u1",
	}))
	err := s.repo.CreateVersion(&models.DesignVersion{
		DesignID: d.ID, Version: "1.0.0", Snapshot: []byte(`{}`), CreatedBy: "u1",
	})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
}

func TestCreateVersionUnknownDesign(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateVersion(context.Background(), "u1", 999, CreateVersionInput{VersionBump: "patch"})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreateVersionForeignDesignReadsAsNotFound(t *testing.T) {
	s := newTestService(t)
	d := seedDesign(t, s, "u1", `{}`)
	_, err := s.CreateVersion(context.Background(), "intruder", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

// ── snapshot independence ───────────────────────────────────

func TestSnapshotIndependentOfLiveDocument(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{"designName":"Office A","requirements":{"totalUsers":"1-50"}}`)

	v, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)

	// Mutate the live document after snapshotting.
	_, err = s.UpdateDesign(ctx, "u1", d.ID, DesignInput{
		Document: json.RawMessage(`{"designName":"Office B","requirements":{"totalUsers":"51-200"}}`),
	})
	require.NoError(t, err)

	stored, err := s.repo.GetVersion(v.ID)
	require.NoError(t, err)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(stored.Snapshot, &snap))
	assert.Equal(t, "Office A", snap["designName"])
}

// ── compare ─────────────────────────────────────────────────

func TestCompareSingleModifiedField(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{"designName":"Office A","requirements":{"totalUsers":"1-50"}}`)

	v1, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)

	_, err = s.UpdateDesign(ctx, "u1", d.ID, DesignInput{
		Document: json.RawMessage(`{"designName":"Office A","requirements":{"totalUsers":"51-200"}}`),
	})
	require.NoError(t, err)
	v2, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "minor"})
	require.NoError(t, err)

	res, err := s.Compare("u1", d.ID, v1.Version, v2.Version)
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "requirements.totalUsers", res.Changes[0].Path)
	assert.Equal(t, OpModified, res.Changes[0].Operation)
	assert.Equal(t, "1-50", res.Changes[0].OldValue)
	assert.Equal(t, "51-200", res.Changes[0].NewValue)
	assert.Equal(t, DiffSummary{TotalChanges: 1, Modified: 1}, res.Summary)
}

func TestCompareResolvesByIDOrVersionString(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{"a":1}`)

	v1, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)
	v2, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)

	res, err := s.Compare("u1", d.ID, fmt.Sprint(v1.ID), v2.Version)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, res.Version1.ID)
	assert.Equal(t, v2.ID, res.Version2.ID)
}

func TestCompareMissingReferenceIsNotFound(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{"a":1}`)
	_, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)

	_, err = s.Compare("u1", d.ID, "1.0.0", "9.9.9")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

// ── publish ─────────────────────────────────────────────────

func TestPublishIsOneWayAndKeepsFirstTimestamp(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{}`)
	v, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)

	first, err := s.Publish("u1", v.ID)
	require.NoError(t, err)
	require.True(t, first.IsPublished)
	require.NotNil(t, first.PublishedAt)
	stamp := *first.PublishedAt

	again, err := s.Publish("u1", v.ID)
	require.NoError(t, err)
	assert.True(t, again.IsPublished)
	require.NotNil(t, again.PublishedAt)
	assert.Equal(t, stamp, *again.PublishedAt)
}

func TestListVersionsPublishedOnlyAndSemanticOrder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{}`)

	var ids []uint
	for _, bump := range []string{"patch", "minor", "major"} {
		v, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: bump})
		require.NoError(t, err)
		ids = append(ids, v.ID)
	}
	_, err := s.Publish("u1", ids[1])
	require.NoError(t, err)

	all, err := s.ListVersions("u1", d.ID, false, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2.0.0", all[0].Version)
	assert.Equal(t, "1.1.0", all[1].Version)
	assert.Equal(t, "1.0.0", all[2].Version)

	published, err := s.ListVersions("u1", d.ID, true, "", 0)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "1.1.0", published[0].Version)

	limited, err := s.ListVersions("u1", d.ID, false, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListVersionsLimitCutsAfterSemanticSort(t *testing.T) {
	s := newTestService(t)
	d := seedDesign(t, s, "u1", `{}`)

	// Insertion order deliberately disagrees with semantic order.
	for _, v := range []string{"1.0.0", "3.0.0", "2.0.0"} {
		require.NoError(t, s.repo.CreateVersion(&models.DesignVersion{
			DesignID: d.ID, Version: v, Snapshot: []byte(`{}`), CreatedBy: "u1",
		}))
	}

	top, err := s.ListVersions("u1", d.ID, false, "", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "3.0.0", top[0].Version)
	assert.Equal(t, "2.0.0", top[1].Version)
}

// ── restore ─────────────────────────────────────────────────

func TestRestoreOverwritesLiveDesign(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{"designName":"Office A"}`)

	v, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.Version)

	_, err = s.UpdateDesign(ctx, "u1", d.ID, DesignInput{
		Document: json.RawMessage(`{"designName":"Office B"}`),
	})
	require.NoError(t, err)

	restored, err := s.Restore(ctx, "u1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Office A", restored.Name)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(restored.Document, &doc))
	assert.Equal(t, "Office A", doc["designName"])

	// History untouched: restore creates no new version.
	versions, err := s.ListVersions("u1", d.ID, false, "", 0)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestRestoreForeignDesignReadsAsNotFound(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	d := seedDesign(t, s, "u1", `{"designName":"Office A"}`)
	v, err := s.CreateVersion(ctx, "u1", d.ID, CreateVersionInput{VersionBump: "patch"})
	require.NoError(t, err)

	_, err = s.Restore(ctx, "intruder", v.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
