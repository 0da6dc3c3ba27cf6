package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/repositories"
)

const maxDerivedSlugAttempts = 10

var (
	// ErrCatalogInvalidInput indicates the command failed validation.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the catalog does not exist or is not visible to the caller.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogForbidden indicates the caller does not own the catalog.
	ErrCatalogForbidden = errors.New("catalog: forbidden")
	// ErrCatalogConflict indicates the requested slug is used by another active catalog.
	ErrCatalogConflict = errors.New("catalog: slug conflict")
	// ErrCatalogUnavailable wraps persistence failures.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// CatalogServiceDeps wires dependencies for the catalog service implementation.
type CatalogServiceDeps struct {
	Catalogs    repositories.CatalogRepository
	Events      CatalogEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	repo      repositories.CatalogRepository
	events    *eventEmitter
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalogs == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	now := func() time.Time { return clock().UTC() }

	return &catalogService{
		repo:      deps.Catalogs,
		events:    newEventEmitter(deps.Events, now, idGen, logger),
		now:       now,
		newID:     idGen,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

func (s *catalogService) SaveCatalog(ctx context.Context, cmd SaveCatalogCommand) (Catalog, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return Catalog{}, fmt.Errorf("%w: actor id is required", ErrCatalogInvalidInput)
	}
	draft, err := s.buildDraft(cmd)
	if err != nil {
		return Catalog{}, err
	}

	if id := strings.TrimSpace(cmd.CatalogID); id != "" {
		return s.update(ctx, actorID, id, cmd, draft)
	}
	return s.create(ctx, actorID, cmd, draft)
}

func (s *catalogService) create(ctx context.Context, actorID string, cmd SaveCatalogCommand, draft Catalog) (Catalog, error) {
	now := s.now()
	draft.UserID = actorID
	draft.CreatedAt = now
	draft.LastUpdated = now
	draft.IsActive = true
	if cmd.IsActive != nil {
		draft.IsActive = *cmd.IsActive
	}
	draft.EngagementStats = domain.EngagementStats{}
	draft.ShareStats = domain.ShareStats{}

	slug, explicit, err := s.chooseSlug(cmd.Slug, draft.BusinessName)
	if err != nil {
		return Catalog{}, err
	}

	saved, err := s.withSlugRetry(ctx, slug, explicit, func(candidate string) (Catalog, error) {
		draft.Slug = candidate
		return s.repo.Insert(ctx, draft)
	})
	if err != nil {
		return Catalog{}, err
	}

	s.logger(ctx, "catalog.created", map[string]any{
		"catalogId": saved.ID,
		"slug":      saved.Slug,
		"items":     len(saved.Items),
	})
	s.events.emit(ctx, domain.CatalogEventCreated, saved)
	return saved, nil
}

func (s *catalogService) update(ctx context.Context, actorID, catalogID string, cmd SaveCatalogCommand, draft Catalog) (Catalog, error) {
	existing, err := s.loadOwned(ctx, actorID, catalogID)
	if err != nil {
		return Catalog{}, err
	}

	draft.ID = existing.ID
	draft.UserID = existing.UserID
	draft.CreatedAt = existing.CreatedAt
	draft.LastUpdated = s.now()
	draft.IsActive = existing.IsActive
	if cmd.IsActive != nil {
		draft.IsActive = *cmd.IsActive
	}

	requested := strings.TrimSpace(cmd.Slug)
	var (
		slug     string
		explicit bool
	)
	switch {
	case requested != "" && domain.Slugify(requested) == existing.Slug:
		slug, explicit = existing.Slug, true
	default:
		slug, explicit, err = s.chooseSlug(requested, draft.BusinessName)
		if err != nil {
			return Catalog{}, err
		}
	}

	saved, err := s.withSlugRetry(ctx, slug, explicit, func(candidate string) (Catalog, error) {
		draft.Slug = candidate
		return s.repo.Replace(ctx, draft)
	})
	if err != nil {
		return Catalog{}, err
	}

	s.logger(ctx, "catalog.updated", map[string]any{
		"catalogId": saved.ID,
		"slug":      saved.Slug,
		"items":     len(saved.Items),
	})
	s.events.emit(ctx, domain.CatalogEventUpdated, saved)
	return saved, nil
}

// withSlugRetry runs write with slug. A derived slug that collides with an active catalog
// is retried with -2, -3, ... suffixes; an explicit slug collision is reported as a conflict.
func (s *catalogService) withSlugRetry(ctx context.Context, slug string, explicit bool, write func(string) (Catalog, error)) (Catalog, error) {
	candidate := slug
	for attempt := 1; ; attempt++ {
		saved, err := write(candidate)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, repositories.ErrSlugTaken) {
			return Catalog{}, mapCatalogRepoError(err)
		}
		if explicit || attempt >= maxDerivedSlugAttempts {
			return Catalog{}, fmt.Errorf("%w: %q is already in use", ErrCatalogConflict, candidate)
		}
		s.logger(ctx, "catalog.slug_taken", map[string]any{"slug": candidate, "attempt": attempt})
		candidate = fmt.Sprintf("%s-%d", slug, attempt+1)
	}
}

// chooseSlug returns the normalised requested slug, or one derived from the business name
// when none was requested. explicit reports whether the caller chose it.
func (s *catalogService) chooseSlug(requested, businessName string) (string, bool, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		slug := domain.Slugify(requested)
		if !domain.ValidSlug(slug) {
			return "", false, fmt.Errorf("%w: slug %q has no usable characters", ErrCatalogInvalidInput, requested)
		}
		return slug, true, nil
	}
	slug := domain.Slugify(businessName)
	if !domain.ValidSlug(slug) {
		id := s.newID()
		if len(id) > 8 {
			id = id[len(id)-8:]
		}
		slug = domain.FallbackSlug(id)
	}
	return slug, false, nil
}

// buildDraft validates and normalises the editable fields of the command.
func (s *catalogService) buildDraft(cmd SaveCatalogCommand) (Catalog, error) {
	name := strings.TrimSpace(cmd.BusinessName)
	if name == "" {
		return Catalog{}, fmt.Errorf("%w: businessName is required", ErrCatalogInvalidInput)
	}
	template, err := domain.ParseTemplate(cmd.Template)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	if err := cmd.Theme.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}

	items := make([]CatalogItem, len(cmd.Items))
	for i, item := range cmd.Items {
		item.ID = strings.TrimSpace(item.ID)
		item.Name = strings.TrimSpace(item.Name)
		item.Description = s.sanitize(item.Description)
		item.Notes = s.sanitize(item.Notes)
		item.Price = strings.TrimSpace(item.Price)
		item.Category = strings.TrimSpace(item.Category)
		item.ImageURL = strings.TrimSpace(item.ImageURL)
		items[i] = item
	}
	if err := domain.ValidateItems(items); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = s.newID()
		}
	}

	return Catalog{
		BusinessName:   name,
		Description:    s.sanitize(cmd.Description),
		LogoURL:        strings.TrimSpace(cmd.LogoURL),
		WhatsappNumber: strings.TrimSpace(cmd.WhatsappNumber),
		PhoneNumber:    strings.TrimSpace(cmd.PhoneNumber),
		Address:        strings.TrimSpace(cmd.Address),
		Template:       template,
		Theme:          cmd.Theme,
		Items:          items,
	}, nil
}

// sanitize strips markup from free text. Entities are decoded again since the value is
// stored as plain text, not HTML.
func (s *catalogService) sanitize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func (s *catalogService) GetCatalog(ctx context.Context, actorID, catalogID string) (Catalog, error) {
	actorID = strings.TrimSpace(actorID)
	catalogID = strings.TrimSpace(catalogID)
	if actorID == "" || catalogID == "" {
		return Catalog{}, fmt.Errorf("%w: actor and catalog id are required", ErrCatalogInvalidInput)
	}
	return s.loadOwned(ctx, actorID, catalogID)
}

func (s *catalogService) ListCatalogs(ctx context.Context, filter CatalogListFilter) (domain.CursorPage[Catalog], error) {
	userID := strings.TrimSpace(filter.UserID)
	if userID == "" {
		return domain.CursorPage[Catalog]{}, fmt.Errorf("%w: user id is required", ErrCatalogInvalidInput)
	}
	page, err := s.repo.ListByUser(ctx, userID, repositories.CatalogListFilter{
		Pagination: filter.Pagination,
		ActiveOnly: filter.ActiveOnly,
	})
	if err != nil {
		return domain.CursorPage[Catalog]{}, mapCatalogRepoError(err)
	}
	return page, nil
}

func (s *catalogService) SubscribeCatalogs(ctx context.Context, userID string) (<-chan CatalogListSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCatalogInvalidInput)
	}
	source, err := s.repo.SubscribeByUser(ctx, userID)
	if err != nil {
		return nil, mapCatalogRepoError(err)
	}

	out := make(chan CatalogListSnapshot, 1)
	go func() {
		defer close(out)
		for snap := range source {
			next := CatalogListSnapshot{Catalogs: snap.Catalogs, ReadTime: snap.ReadTime}
			if snap.Err != nil {
				next.Err = mapCatalogRepoError(snap.Err)
			}
			select {
			case out <- next:
			case <-ctx.Done():
				// Drain so the producer can observe cancellation and exit.
				for range source {
				}
				return
			}
		}
	}()
	return out, nil
}

func (s *catalogService) DeleteCatalog(ctx context.Context, actorID, catalogID string) error {
	existing, err := s.GetCatalog(ctx, actorID, catalogID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, existing.ID); err != nil {
		return mapCatalogRepoError(err)
	}
	s.logger(ctx, "catalog.deleted", map[string]any{"catalogId": existing.ID})
	s.events.emit(ctx, domain.CatalogEventDeleted, existing)
	return nil
}

func (s *catalogService) PublishCatalog(ctx context.Context, actorID, catalogID string) (Catalog, error) {
	existing, err := s.GetCatalog(ctx, actorID, catalogID)
	if err != nil {
		return Catalog{}, err
	}
	if existing.IsActive {
		return existing, nil
	}

	slug := existing.Slug
	explicit := slug != ""
	if slug == "" {
		slug, _, err = s.chooseSlug("", existing.BusinessName)
		if err != nil {
			return Catalog{}, err
		}
	}
	saved, err := s.withSlugRetry(ctx, slug, explicit, func(candidate string) (Catalog, error) {
		return s.repo.SetActive(ctx, existing.ID, repositories.ActivationChange{
			Active:      true,
			Slug:        candidate,
			LastUpdated: s.now(),
		})
	})
	if err != nil {
		return Catalog{}, err
	}
	s.logger(ctx, "catalog.published", map[string]any{"catalogId": saved.ID, "slug": saved.Slug})
	s.events.emit(ctx, domain.CatalogEventPublished, saved)
	return saved, nil
}

func (s *catalogService) UnpublishCatalog(ctx context.Context, actorID, catalogID string) (Catalog, error) {
	existing, err := s.GetCatalog(ctx, actorID, catalogID)
	if err != nil {
		return Catalog{}, err
	}
	if !existing.IsActive {
		return existing, nil
	}
	saved, err := s.repo.SetActive(ctx, existing.ID, repositories.ActivationChange{
		Active:      false,
		LastUpdated: s.now(),
	})
	if err != nil {
		return Catalog{}, mapCatalogRepoError(err)
	}
	s.logger(ctx, "catalog.unpublished", map[string]any{"catalogId": saved.ID})
	s.events.emit(ctx, domain.CatalogEventUnpublished, saved)
	return saved, nil
}

func (s *catalogService) MoveItem(ctx context.Context, cmd MoveItemCommand) (Catalog, error) {
	if _, err := domain.ParseMoveDirection(string(cmd.Direction)); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	existing, err := s.GetCatalog(ctx, cmd.ActorID, cmd.CatalogID)
	if err != nil {
		return Catalog{}, err
	}
	if cmd.Index < 0 || cmd.Index >= len(existing.Items) {
		return Catalog{}, fmt.Errorf("%w: item index %d out of range", ErrCatalogInvalidInput, cmd.Index)
	}
	items, moved := domain.MoveItem(existing.Items, cmd.Index, cmd.Direction)
	if !moved {
		return existing, nil
	}

	existing.Items = items
	existing.LastUpdated = s.now()
	saved, err := s.repo.Replace(ctx, existing)
	if err != nil {
		return Catalog{}, mapCatalogRepoError(err)
	}
	s.events.emit(ctx, domain.CatalogEventUpdated, saved)
	return saved, nil
}

func (s *catalogService) GetPublicCatalog(ctx context.Context, slug string) (Catalog, error) {
	slug = strings.TrimSpace(slug)
	if !domain.ValidSlug(slug) {
		return Catalog{}, ErrCatalogNotFound
	}
	catalog, err := s.repo.FindActiveBySlug(ctx, slug)
	if err != nil {
		return Catalog{}, mapCatalogRepoError(err)
	}
	return catalog, nil
}

func (s *catalogService) loadOwned(ctx context.Context, actorID, catalogID string) (Catalog, error) {
	catalog, err := s.repo.FindByID(ctx, catalogID)
	if err != nil {
		return Catalog{}, mapCatalogRepoError(err)
	}
	if catalog.UserID != actorID {
		s.logger(ctx, "catalog.forbidden", map[string]any{"catalogId": catalogID})
		return Catalog{}, ErrCatalogForbidden
	}
	return catalog, nil
}

func mapCatalogRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
