package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/repositories"
)

type testRepoError struct {
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *testRepoError) Error() string       { return e.err.Error() }
func (e *testRepoError) Unwrap() error       { return e.err }
func (e *testRepoError) IsNotFound() bool    { return e.notFound }
func (e *testRepoError) IsConflict() bool    { return e.conflict }
func (e *testRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(what string) error {
	return &testRepoError{err: fmt.Errorf("%s not found", what), notFound: true}
}

func unavailableErr() error {
	return &testRepoError{err: fmt.Errorf("backend unavailable"), unavailable: true}
}

// memCatalogRepository mirrors the Firestore repository contract in memory: slugs are unique
// among active catalogs, counters are only touched by IncrementStat.
type memCatalogRepository struct {
	mu       sync.Mutex
	seq      int
	catalogs map[string]domain.Catalog

	failWrites error
	inserts    int
	replaces   int
	snapshots  chan repositories.CatalogSnapshot
}

func newMemCatalogRepository(seed ...domain.Catalog) *memCatalogRepository {
	repo := &memCatalogRepository{catalogs: map[string]domain.Catalog{}}
	for _, catalog := range seed {
		repo.catalogs[catalog.ID] = cloneCatalog(catalog)
	}
	return repo
}

func (r *memCatalogRepository) Insert(_ context.Context, catalog domain.Catalog) (domain.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.failWrites != nil {
		return domain.Catalog{}, r.failWrites
	}
	if catalog.IsActive {
		if err := r.slugAvailable(catalog.Slug, ""); err != nil {
			return domain.Catalog{}, err
		}
	}
	r.seq++
	catalog.ID = "cat-" + strconv.Itoa(r.seq)
	catalog.EngagementStats = domain.EngagementStats{}
	catalog.ShareStats = domain.ShareStats{}
	r.catalogs[catalog.ID] = cloneCatalog(catalog)
	return cloneCatalog(catalog), nil
}

func (r *memCatalogRepository) Replace(_ context.Context, catalog domain.Catalog) (domain.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	if r.failWrites != nil {
		return domain.Catalog{}, r.failWrites
	}
	stored, ok := r.catalogs[catalog.ID]
	if !ok {
		return domain.Catalog{}, notFoundErr("catalog")
	}
	if catalog.IsActive {
		if err := r.slugAvailable(catalog.Slug, catalog.ID); err != nil {
			return domain.Catalog{}, err
		}
	}
	catalog.UserID = stored.UserID
	catalog.CreatedAt = stored.CreatedAt
	catalog.EngagementStats = stored.EngagementStats
	catalog.ShareStats = stored.ShareStats
	r.catalogs[catalog.ID] = cloneCatalog(catalog)
	return cloneCatalog(catalog), nil
}

func (r *memCatalogRepository) SetActive(_ context.Context, id string, change repositories.ActivationChange) (domain.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.catalogs[id]
	if !ok {
		return domain.Catalog{}, notFoundErr("catalog")
	}
	if change.Slug != "" {
		stored.Slug = change.Slug
	}
	if change.Active {
		if err := r.slugAvailable(stored.Slug, id); err != nil {
			return domain.Catalog{}, err
		}
	}
	stored.IsActive = change.Active
	stored.LastUpdated = change.LastUpdated
	r.catalogs[id] = stored
	return cloneCatalog(stored), nil
}

func (r *memCatalogRepository) FindByID(_ context.Context, id string) (domain.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.catalogs[id]
	if !ok {
		return domain.Catalog{}, notFoundErr("catalog")
	}
	return cloneCatalog(stored), nil
}

func (r *memCatalogRepository) FindActiveBySlug(_ context.Context, slug string) (domain.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.catalogs {
		if stored.IsActive && stored.Slug == slug {
			return cloneCatalog(stored), nil
		}
	}
	return domain.Catalog{}, notFoundErr("catalog")
}

func (r *memCatalogRepository) ListByUser(_ context.Context, userID string, filter repositories.CatalogListFilter) (domain.CursorPage[domain.Catalog], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Catalog
	for _, stored := range r.catalogs {
		if stored.UserID != userID || (filter.ActiveOnly && !stored.IsActive) {
			continue
		}
		all = append(all, cloneCatalog(stored))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := 0
	if filter.Pagination.PageToken != "" {
		start, _ = strconv.Atoi(filter.Pagination.PageToken)
	}
	size := filter.Pagination.PageSize
	if size <= 0 {
		size = 20
	}
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	page := domain.CursorPage[domain.Catalog]{}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	} else {
		end = len(all)
	}
	page.Items = all[start:end]
	return page, nil
}

func (r *memCatalogRepository) SubscribeByUser(ctx context.Context, userID string) (<-chan repositories.CatalogSnapshot, error) {
	if r.snapshots != nil {
		return r.snapshots, nil
	}
	page, _ := r.ListByUser(ctx, userID, repositories.CatalogListFilter{Pagination: domain.Pagination{PageSize: 1000}})
	out := make(chan repositories.CatalogSnapshot, 1)
	out <- repositories.CatalogSnapshot{Catalogs: page.Items, ReadTime: time.Unix(0, 0).UTC()}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (r *memCatalogRepository) IncrementStat(_ context.Context, id string, path domain.StatPath, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.catalogs[id]
	if !ok {
		return notFoundErr("catalog")
	}
	switch path.String() {
	case "engagementStats.views":
		stored.EngagementStats.Views += delta
	case "engagementStats.itemClicks":
		stored.EngagementStats.ItemClicks += delta
	case "engagementStats.callClicks":
		stored.EngagementStats.CallClicks += delta
	case "engagementStats.whatsappClicks":
		stored.EngagementStats.WhatsappClicks += delta
	case "engagementStats.directionClicks":
		stored.EngagementStats.DirectionClicks += delta
	case "shareStats.whatsapp":
		stored.ShareStats.Whatsapp += delta
	case "shareStats.facebook":
		stored.ShareStats.Facebook += delta
	case "shareStats.twitter":
		stored.ShareStats.Twitter += delta
	case "shareStats.copy":
		stored.ShareStats.Copy += delta
	default:
		return fmt.Errorf("unknown path %s", path)
	}
	r.catalogs[id] = stored
	return nil
}

func (r *memCatalogRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.catalogs[id]; !ok {
		return notFoundErr("catalog")
	}
	delete(r.catalogs, id)
	return nil
}

func (r *memCatalogRepository) get(id string) domain.Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneCatalog(r.catalogs[id])
}

func (r *memCatalogRepository) slugAvailable(slug, selfID string) error {
	for id, stored := range r.catalogs {
		if id != selfID && stored.IsActive && stored.Slug == slug {
			return &testRepoError{err: fmt.Errorf("%w: %q", repositories.ErrSlugTaken, slug), conflict: true}
		}
	}
	return nil
}

func cloneCatalog(c domain.Catalog) domain.Catalog {
	if c.Items != nil {
		c.Items = append([]domain.CatalogItem(nil), c.Items...)
	}
	return c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.CatalogEvent
	err    error
}

func (p *recordingPublisher) PublishCatalogEvent(_ context.Context, event domain.CatalogEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	if p.err != nil {
		return "", p.err
	}
	return "msg-" + strconv.Itoa(len(p.events)), nil
}

func (p *recordingPublisher) types() []domain.CatalogEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.CatalogEventType, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type recordedLog struct {
	event  string
	fields map[string]any
}

type logRecorder struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *logRecorder) log(_ context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{event: event, fields: fields})
}

func (l *logRecorder) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if entry.event == event {
			return true
		}
	}
	return false
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%08d", prefix, n)
	}
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
