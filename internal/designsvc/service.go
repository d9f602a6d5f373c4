package designsvc

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"netweave/internal/apperr"
	"netweave/internal/logs"
	"netweave/internal/models"
	"netweave/internal/notify"
	"netweave/internal/semver"
	"netweave/internal/store"

	"gorm.io/datatypes"
)

// Service is the design version manager: snapshot, number, diff, publish,
// restore.
type Service struct {
	repo  *Repo
	kv    store.KV // optional read-through cache for design documents
	ttl   time.Duration
	notif *notify.Dispatcher
}

func NewService(repo *Repo, kv store.KV, ttl time.Duration, notif *notify.Dispatcher) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, kv: kv, ttl: ttl, notif: notif}
}

func storeErr(err error) error {
	return apperr.Wrap(apperr.Unavailable, "store unavailable", err)
}

func cacheKey(id uint) string { return "design:" + strconv.FormatUint(uint64(id), 10) }

// ── Designs ─────────────────────────────────────────────────

type DesignInput struct {
	Name     string          `json:"designName"`
	Document json.RawMessage `json:"document"`
}

// docName pulls designName out of the document, if present. The document is
// the authoritative design state (it is what gets snapshotted and restored);
// the name column only mirrors it for listing.
func docName(doc []byte) string {
	var m map[string]any
	if json.Unmarshal(doc, &m) != nil {
		return ""
	}
	name, _ := m["designName"].(string)
	return name
}

func (s *Service) CreateDesign(ctx context.Context, caller string, in DesignInput) (*models.NetworkDesign, error) {
	doc := in.Document
	if len(doc) == 0 {
		doc = json.RawMessage(`{}`)
	} else if !json.Valid(doc) {
		return nil, apperr.E(apperr.Validation, "design document is not valid JSON")
	}
	name := in.Name
	if n := docName(doc); n != "" {
		name = n
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.E(apperr.Validation, "design name required")
	}
	d := &models.NetworkDesign{OwnerID: caller, Name: name, Document: []byte(doc)}
	if err := s.repo.CreateDesign(d); err != nil {
		return nil, storeErr(err)
	}
	return d, nil
}

func (s *Service) GetDesign(ctx context.Context, caller string, id uint) (*models.NetworkDesign, error) {
	if s.kv != nil {
		if raw, err := s.kv.Get(ctx, cacheKey(id)); err == nil {
			var d models.NetworkDesign
			if json.Unmarshal([]byte(raw), &d) == nil && d.OwnerID == caller {
				return &d, nil
			}
		} else if err != store.ErrMiss {
			logs.Logger.Warnf("design cache get: %v", err)
		}
	}
	d, err := s.repo.GetDesign(id, caller)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "design %d not found", id)
		}
		return nil, storeErr(err)
	}
	s.cacheDesign(ctx, d)
	return d, nil
}

func (s *Service) UpdateDesign(ctx context.Context, caller string, id uint, in DesignInput) (*models.NetworkDesign, error) {
	d, err := s.repo.GetDesign(id, caller)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "design %d not found", id)
		}
		return nil, storeErr(err)
	}
	if in.Name != "" {
		d.Name = in.Name
	}
	if len(in.Document) > 0 {
		if !json.Valid(in.Document) {
			return nil, apperr.E(apperr.Validation, "design document is not valid JSON")
		}
		d.Document = []byte(in.Document)
		if n := docName(d.Document); n != "" {
			d.Name = n
		}
	}
	if err := s.repo.SaveDesign(d); err != nil {
		return nil, storeErr(err)
	}
	s.invalidate(ctx, d.ID)
	return d, nil
}

func (s *Service) cacheDesign(ctx context.Context, d *models.NetworkDesign) {
	if s.kv == nil {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, cacheKey(d.ID), string(raw), s.ttl); err != nil {
		logs.Logger.Warnf("design cache set: %v", err)
	}
}

func (s *Service) invalidate(ctx context.Context, id uint) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Del(ctx, cacheKey(id)); err != nil {
		logs.Logger.Warnf("design cache del: %v", err)
	}
}

// ── Versions ────────────────────────────────────────────────

// NextVersion computes the next semantic version for the design: max of the
// recorded versions bumped by class, or 1.0.0 when none exist.
func (s *Service) NextVersion(designID uint, class string) (string, error) {
	if !semver.ValidBump(class) {
		return "", apperr.E(apperr.Validation, "versionBump must be major, minor or patch")
	}
	existing, err := s.repo.VersionStrings(designID)
	if err != nil {
		return "", storeErr(err)
	}
	cur, ok := semver.Max(existing)
	if !ok {
		return semver.Initial, nil
	}
	next, err := semver.Bump(cur, class)
	if err != nil {
		return "", apperr.E(apperr.Validation, "%v", err)
	}
	return next.String(), nil
}

type CreateVersionInput struct {
	VersionBump   string   `json:"versionBump"`
	Changes       string   `json:"changes"`
	Notes         string   `json:"notes"`
	Tags          []string `json:"tags"`
	ParentVersion *uint    `json:"parentVersion"`
}

// CreateVersion snapshots the live design under the next version number.
// Two racing creators can compute the same number; the unique
// (design_id, version) index rejects the loser with Conflict, to be retried.
func (s *Service) CreateVersion(ctx context.Context, caller string, designID uint, in CreateVersionInput) (*models.DesignVersion, error) {
	d, err := s.repo.GetDesign(designID, caller)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "design %d not found", designID)
		}
		return nil, storeErr(err)
	}
	version, err := s.NextVersion(designID, in.VersionBump)
	if err != nil {
		return nil, err
	}

	// The snapshot must stay independent of the live document: copy the
	// bytes, never alias them.
	snapshot := append([]byte(nil), d.Document...)

	v := &models.DesignVersion{
		DesignID:        designID,
		Version:         version,
		Snapshot:        snapshot,
		CreatedBy:       caller,
		Changes:         in.Changes,
		Notes:           in.Notes,
		Tags:            datatypes.NewJSONSlice(in.Tags),
		ParentVersionID: in.ParentVersion,
	}
	if err := s.repo.CreateVersion(v); err != nil {
		if IsDuplicate(err) {
			return nil, apperr.E(apperr.Conflict, "version %s already exists for design %d", version, designID)
		}
		return nil, storeErr(err)
	}
	return v, nil
}

// ListVersions returns the design's versions, semantically descending by
// default; sort=created orders by creation instead.
func (s *Service) ListVersions(caller string, designID uint, publishedOnly bool, sortBy string, limit int) ([]models.DesignVersion, error) {
	if _, err := s.repo.GetDesign(designID, caller); err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "design %d not found", designID)
		}
		return nil, storeErr(err)
	}
	f := VersionFilter{DesignID: designID, PublishedOnly: publishedOnly}
	if sortBy == "created" {
		f.Limit = limit
	}
	out, err := s.repo.ListVersions(f)
	if err != nil {
		return nil, storeErr(err)
	}
	if sortBy != "created" {
		sort.SliceStable(out, func(i, j int) bool {
			vi, ei := semver.Parse(out[i].Version)
			vj, ej := semver.Parse(out[j].Version)
			if ei != nil || ej != nil {
				return out[i].ID > out[j].ID
			}
			return semver.Compare(vi, vj) > 0
		})
		// The window is cut after sorting so a limit returns the highest
		// versions, not the newest rows.
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

// ── Compare ─────────────────────────────────────────────────

type VersionRef struct {
	ID      uint   `json:"id"`
	Version string `json:"version"`
}

type CompareResult struct {
	Version1 VersionRef  `json:"version1"`
	Version2 VersionRef  `json:"version2"`
	Changes  []Change    `json:"changes"`
	Summary  DiffSummary `json:"summary"`
}

func (s *Service) resolveRef(designID uint, ref string) (*models.DesignVersion, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.E(apperr.Validation, "version reference required")
	}
	asID, _ := strconv.ParseUint(ref, 10, 64)
	v, err := s.repo.FindVersionRef(designID, ref, uint(asID))
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "version %q not found for design %d", ref, designID)
		}
		return nil, storeErr(err)
	}
	return v, nil
}

// Compare diffs two version snapshots of one design. References match by id
// or by version string; id wins when both could apply.
func (s *Service) Compare(caller string, designID uint, ref1, ref2 string) (*CompareResult, error) {
	if _, err := s.repo.GetDesign(designID, caller); err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "design %d not found", designID)
		}
		return nil, storeErr(err)
	}
	v1, err := s.resolveRef(designID, ref1)
	if err != nil {
		return nil, err
	}
	v2, err := s.resolveRef(designID, ref2)
	if err != nil {
		return nil, err
	}
	changes, summary, err := DiffSnapshots(v1.Snapshot, v2.Snapshot)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "snapshots are not comparable", err)
	}
	return &CompareResult{
		Version1: VersionRef{ID: v1.ID, Version: v1.Version},
		Version2: VersionRef{ID: v2.ID, Version: v2.Version},
		Changes:  changes,
		Summary:  summary,
	}, nil
}

// ── Publish / Restore ───────────────────────────────────────

// Publish flips the one-way published flag. Re-publishing is a no-op: the
// flag stays true and the original timestamp is kept.
func (s *Service) Publish(caller string, versionID uint) (*models.DesignVersion, error) {
	v, err := s.repo.GetVersion(versionID)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "version %d not found", versionID)
		}
		return nil, storeErr(err)
	}
	if _, err := s.repo.GetDesign(v.DesignID, caller); err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "version %d not found", versionID)
		}
		return nil, storeErr(err)
	}
	if v.IsPublished {
		return v, nil
	}
	now := time.Now().UTC()
	v.IsPublished = true
	v.PublishedAt = &now
	if err := s.repo.SaveVersion(v); err != nil {
		return nil, storeErr(err)
	}
	s.notif.Publish(notify.EventVersionPublished, caller, map[string]any{
		"designId":  v.DesignID,
		"versionId": v.ID,
		"version":   v.Version,
	})
	return v, nil
}

// Restore overwrites the live design with the version's snapshot. Destructive
// to live state only; no version entry is created and history is untouched.
// Ownership mismatch reads as NotFound so existence is not leaked.
func (s *Service) Restore(ctx context.Context, caller string, versionID uint) (*models.NetworkDesign, error) {
	v, err := s.repo.GetVersion(versionID)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "version %d not found", versionID)
		}
		return nil, storeErr(err)
	}
	d, err := s.repo.GetDesign(v.DesignID, caller)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "version %d not found", versionID)
		}
		return nil, storeErr(err)
	}
	d.Document = append([]byte(nil), v.Snapshot...)
	if n := docName(d.Document); n != "" {
		d.Name = n
	}
	if err := s.repo.SaveDesign(d); err != nil {
		return nil, storeErr(err)
	}
	s.invalidate(ctx, d.ID)
	s.notif.Publish(notify.EventDesignRestored, caller, map[string]any{
		"designId":  d.ID,
		"versionId": v.ID,
		"version":   v.Version,
	})
	return d, nil
}
