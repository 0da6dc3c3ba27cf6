package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/showcase/api/internal/domain"
	pfirestore "github.com/showcase/api/internal/platform/firestore"
	"github.com/showcase/api/internal/platform/pagination"
	"github.com/showcase/api/internal/repositories"
)

const (
	catalogCollection      = "catalogs"
	defaultCatalogPageSize = 20
	maxCatalogPageSize     = 100
)

// CatalogRepository persists catalogs in the top-level catalogs collection. Timestamps
// are stored as epoch milliseconds, the same representation the viewer reads.
type CatalogRepository struct {
	base     *pfirestore.BaseRepository[catalogDocument]
	provider *pfirestore.Provider
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[catalogDocument](provider, catalogCollection, nil, nil)
	return &CatalogRepository{base: base, provider: provider}, nil
}

// Insert creates the catalog under a generated ID with zeroed counters.
func (r *CatalogRepository) Insert(ctx context.Context, catalog domain.Catalog) (domain.Catalog, error) {
	if strings.TrimSpace(catalog.UserID) == "" {
		return domain.Catalog{}, errors.New("catalog user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	ref := client.Collection(catalogCollection).NewDoc()

	doc := fromDomainCatalog(catalog)
	doc.EngagementStats = zeroEngagementStats()
	doc.ShareStats = zeroShareStats()

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if doc.IsActive {
			if err := r.ensureSlugAvailable(ctx, tx, doc.Slug, ref.ID); err != nil {
				return err
			}
		}
		return tx.Create(ref, doc)
	}, pfirestore.WithTxLabel("catalogs.insert"))
	if err != nil {
		return domain.Catalog{}, err
	}

	saved := toDomainCatalog(ref.ID, doc)
	return saved, nil
}

// Replace overwrites the editable fields of an existing catalog in one transaction.
func (r *CatalogRepository) Replace(ctx context.Context, catalog domain.Catalog) (domain.Catalog, error) {
	id := strings.TrimSpace(catalog.ID)
	if id == "" {
		return domain.Catalog{}, errors.New("catalog id is required")
	}

	incoming := fromDomainCatalog(catalog)
	var saved domain.Catalog
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := r.base.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if incoming.IsActive {
			if err := r.ensureSlugAvailable(ctx, tx, incoming.Slug, id); err != nil {
				return err
			}
		}
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Update(ref, editableUpdates(incoming), firestore.Exists); err != nil {
			return err
		}

		merged := current.Data
		merged.applyEditable(incoming)
		saved = toDomainCatalog(id, merged)
		return nil
	}, pfirestore.WithTxLabel("catalogs.replace"))
	if err != nil {
		return domain.Catalog{}, err
	}
	return saved, nil
}

// SetActive publishes or unpublishes a catalog. Publishing checks the slug against the
// other active catalogs before the flag is set.
func (r *CatalogRepository) SetActive(ctx context.Context, id string, change repositories.ActivationChange) (domain.Catalog, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Catalog{}, errors.New("catalog id is required")
	}

	var saved domain.Catalog
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := r.base.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		doc := current.Data
		if slug := strings.TrimSpace(change.Slug); slug != "" {
			doc.Slug = slug
		}
		if change.Active {
			if err := r.ensureSlugAvailable(ctx, tx, doc.Slug, id); err != nil {
				return err
			}
		}
		doc.IsActive = change.Active
		doc.LastUpdated = toMillis(change.LastUpdated)

		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		updates := []firestore.Update{
			{Path: "isActive", Value: doc.IsActive},
			{Path: "slug", Value: doc.Slug},
			{Path: "lastUpdated", Value: doc.LastUpdated},
		}
		if err := tx.Update(ref, updates, firestore.Exists); err != nil {
			return err
		}
		saved = toDomainCatalog(id, doc)
		return nil
	}, pfirestore.WithTxLabel("catalogs.set_active"))
	if err != nil {
		return domain.Catalog{}, err
	}
	return saved, nil
}

// FindByID loads a catalog by document ID.
func (r *CatalogRepository) FindByID(ctx context.Context, id string) (domain.Catalog, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Catalog{}, errors.New("catalog id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Catalog{}, err
	}
	return toDomainCatalog(doc.ID, doc.Data), nil
}

// FindActiveBySlug returns the active catalog published under slug. Inactive catalogs
// sharing the slug are invisible.
func (r *CatalogRepository) FindActiveBySlug(ctx context.Context, slug string) (domain.Catalog, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Catalog{}, errors.New("catalog slug is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Where("isActive", "==", true).Limit(1)
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	if len(docs) == 0 {
		return domain.Catalog{}, pfirestore.NewNotFoundError("catalogs.find_by_slug", fmt.Errorf("no active catalog for slug %q", slug))
	}
	return toDomainCatalog(docs[0].ID, docs[0].Data), nil
}

// ListByUser pages through the account's catalogs ordered by lastUpdated descending.
func (r *CatalogRepository) ListByUser(ctx context.Context, userID string, filter repositories.CatalogListFilter) (domain.CursorPage[domain.Catalog], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[domain.Catalog]{}, errors.New("user id is required")
	}

	pageSize := filter.Pagination.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultCatalogPageSize
	case pageSize > maxCatalogPageSize:
		pageSize = maxCatalogPageSize
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Catalog]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", userID)
		if filter.ActiveOnly {
			q = q.Where("isActive", "==", true)
		}
		q = q.OrderBy("lastUpdated", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.Key, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Catalog]{}, err
	}

	page := domain.CursorPage[domain.Catalog]{Items: make([]domain.Catalog, 0, min(len(docs), pageSize))}
	for i, doc := range docs {
		if i == pageSize {
			last := docs[pageSize-1]
			token, err := pagination.EncodeToken(pagination.Cursor{Key: last.Data.LastUpdated, ID: last.ID})
			if err != nil {
				return domain.CursorPage[domain.Catalog]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, toDomainCatalog(doc.ID, doc.Data))
	}
	return page, nil
}

// SubscribeByUser streams the account's full catalog list, most recently updated first.
// The first snapshot reflects the current state.
func (r *CatalogRepository) SubscribeByUser(ctx context.Context, userID string) (<-chan repositories.CatalogSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	snapshots, err := r.base.Watch(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID)
	})
	if err != nil {
		return nil, err
	}

	out := make(chan repositories.CatalogSnapshot, 1)
	go func() {
		defer close(out)
		for snap := range snapshots {
			next := repositories.CatalogSnapshot{ReadTime: snap.ReadTime, Err: snap.Err}
			if snap.Err == nil {
				next.Catalogs = make([]domain.Catalog, 0, len(snap.Docs))
				for _, doc := range snap.Docs {
					next.Catalogs = append(next.Catalogs, toDomainCatalog(doc.ID, doc.Data))
				}
				sortByLastUpdated(next.Catalogs)
			}
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// IncrementStat atomically adds delta to one counter. The stored document is never read.
func (r *CatalogRepository) IncrementStat(ctx context.Context, id string, path domain.StatPath, delta int64) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("catalog id is required")
	}
	if path.Group != domain.StatGroupEngagement && path.Group != domain.StatGroupShare {
		return fmt.Errorf("unknown stat group %q", path.Group)
	}
	_, err := r.base.Increment(ctx, id, path.String(), delta)
	return err
}

// Delete removes the catalog document permanently.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("catalog id is required")
	}
	return r.base.Delete(ctx, id)
}

func (r *CatalogRepository) ensureSlugAvailable(ctx context.Context, tx *firestore.Transaction, slug, selfID string) error {
	if strings.TrimSpace(slug) == "" {
		return errors.New("active catalog requires a slug")
	}
	docs, err := r.base.QueryTx(ctx, tx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Where("isActive", "==", true).Limit(2)
	})
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.ID != selfID {
			return pfirestore.NewConflictError("catalogs.slug", fmt.Errorf("%w: %q", repositories.ErrSlugTaken, slug))
		}
	}
	return nil
}

func sortByLastUpdated(catalogs []domain.Catalog) {
	sort.SliceStable(catalogs, func(i, j int) bool {
		if catalogs[i].LastUpdated.Equal(catalogs[j].LastUpdated) {
			return catalogs[i].ID > catalogs[j].ID
		}
		return catalogs[i].LastUpdated.After(catalogs[j].LastUpdated)
	})
}

type catalogDocument struct {
	UserID          string           `firestore:"userId"`
	Slug            string           `firestore:"slug"`
	BusinessName    string           `firestore:"businessName"`
	Description     string           `firestore:"description"`
	LogoURL         string           `firestore:"logoUrl"`
	WhatsappNumber  string           `firestore:"whatsappNumber"`
	PhoneNumber     string           `firestore:"phoneNumber"`
	Address         string           `firestore:"address"`
	Template        string           `firestore:"template"`
	Theme           themeDocument    `firestore:"theme"`
	Items           []itemDocument   `firestore:"items"`
	IsActive        bool             `firestore:"isActive"`
	CreatedAt       int64            `firestore:"createdAt"`
	LastUpdated     int64            `firestore:"lastUpdated"`
	EngagementStats map[string]int64 `firestore:"engagementStats"`
	ShareStats      map[string]int64 `firestore:"shareStats"`
}

type itemDocument struct {
	ID          string `firestore:"id"`
	Name        string `firestore:"name"`
	Description string `firestore:"description"`
	Price       string `firestore:"price"`
	Category    string `firestore:"category"`
	ImageURL    string `firestore:"imageUrl"`
	IsAvailable *bool  `firestore:"isAvailable,omitempty"`
	Notes       string `firestore:"notes,omitempty"`
}

type themeDocument struct {
	PrimaryColor      string `firestore:"primaryColor,omitempty"`
	AccentColor       string `firestore:"accentColor,omitempty"`
	BackgroundColor   string `firestore:"backgroundColor,omitempty"`
	TextColor         string `firestore:"textColor,omitempty"`
	Font              string `firestore:"font,omitempty"`
	FontSizeHeading   string `firestore:"fontSizeHeading,omitempty"`
	FontSizeBody      string `firestore:"fontSizeBody,omitempty"`
	CardStyle         string `firestore:"cardStyle,omitempty"`
	Spacing           string `firestore:"spacing,omitempty"`
	LogoStyle         string `firestore:"logoStyle,omitempty"`
	BackgroundPattern string `firestore:"backgroundPattern,omitempty"`
}

// editableUpdates lists every field a save may write. createdAt, userId and the
// counter maps are deliberately absent.
func editableUpdates(doc catalogDocument) []firestore.Update {
	return []firestore.Update{
		{Path: "slug", Value: doc.Slug},
		{Path: "businessName", Value: doc.BusinessName},
		{Path: "description", Value: doc.Description},
		{Path: "logoUrl", Value: doc.LogoURL},
		{Path: "whatsappNumber", Value: doc.WhatsappNumber},
		{Path: "phoneNumber", Value: doc.PhoneNumber},
		{Path: "address", Value: doc.Address},
		{Path: "template", Value: doc.Template},
		{Path: "theme", Value: doc.Theme},
		{Path: "items", Value: doc.Items},
		{Path: "isActive", Value: doc.IsActive},
		{Path: "lastUpdated", Value: doc.LastUpdated},
	}
}

func (d *catalogDocument) applyEditable(src catalogDocument) {
	d.Slug = src.Slug
	d.BusinessName = src.BusinessName
	d.Description = src.Description
	d.LogoURL = src.LogoURL
	d.WhatsappNumber = src.WhatsappNumber
	d.PhoneNumber = src.PhoneNumber
	d.Address = src.Address
	d.Template = src.Template
	d.Theme = src.Theme
	d.Items = src.Items
	d.IsActive = src.IsActive
	d.LastUpdated = src.LastUpdated
}

func fromDomainCatalog(c domain.Catalog) catalogDocument {
	items := make([]itemDocument, 0, len(c.Items))
	for _, item := range c.Items {
		available := item.IsAvailable
		items = append(items, itemDocument{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Category:    item.Category,
			ImageURL:    item.ImageURL,
			IsAvailable: &available,
			Notes:       item.Notes,
		})
	}
	return catalogDocument{
		UserID:         c.UserID,
		Slug:           c.Slug,
		BusinessName:   c.BusinessName,
		Description:    c.Description,
		LogoURL:        c.LogoURL,
		WhatsappNumber: c.WhatsappNumber,
		PhoneNumber:    c.PhoneNumber,
		Address:        c.Address,
		Template:       string(c.Template),
		Theme: themeDocument{
			PrimaryColor:      c.Theme.PrimaryColor,
			AccentColor:       c.Theme.AccentColor,
			BackgroundColor:   c.Theme.BackgroundColor,
			TextColor:         c.Theme.TextColor,
			Font:              string(c.Theme.Font),
			FontSizeHeading:   string(c.Theme.FontSizeHeading),
			FontSizeBody:      string(c.Theme.FontSizeBody),
			CardStyle:         string(c.Theme.CardStyle),
			Spacing:           string(c.Theme.Spacing),
			LogoStyle:         string(c.Theme.LogoStyle),
			BackgroundPattern: string(c.Theme.BackgroundPattern),
		},
		Items:       items,
		IsActive:    c.IsActive,
		CreatedAt:   toMillis(c.CreatedAt),
		LastUpdated: toMillis(c.LastUpdated),
	}
}

func toDomainCatalog(id string, d catalogDocument) domain.Catalog {
	items := make([]domain.CatalogItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CatalogItem{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Category:    item.Category,
			ImageURL:    item.ImageURL,
			IsAvailable: item.IsAvailable == nil || *item.IsAvailable,
			Notes:       item.Notes,
		})
	}
	template := domain.Template(d.Template)
	if !template.Valid() {
		template = domain.DefaultTemplate
	}
	return domain.Catalog{
		ID:             id,
		UserID:         d.UserID,
		Slug:           d.Slug,
		BusinessName:   d.BusinessName,
		Description:    d.Description,
		LogoURL:        d.LogoURL,
		WhatsappNumber: d.WhatsappNumber,
		PhoneNumber:    d.PhoneNumber,
		Address:        d.Address,
		Template:       template,
		Theme: domain.CatalogThemeConfig{
			PrimaryColor:      d.Theme.PrimaryColor,
			AccentColor:       d.Theme.AccentColor,
			BackgroundColor:   d.Theme.BackgroundColor,
			TextColor:         d.Theme.TextColor,
			Font:              domain.FontFamily(d.Theme.Font),
			FontSizeHeading:   domain.FontSizeHeading(d.Theme.FontSizeHeading),
			FontSizeBody:      domain.FontSizeBody(d.Theme.FontSizeBody),
			CardStyle:         domain.CardStyle(d.Theme.CardStyle),
			Spacing:           domain.Spacing(d.Theme.Spacing),
			LogoStyle:         domain.LogoStyle(d.Theme.LogoStyle),
			BackgroundPattern: domain.BackgroundPattern(d.Theme.BackgroundPattern),
		},
		Items:       items,
		IsActive:    d.IsActive,
		CreatedAt:   fromMillis(d.CreatedAt),
		LastUpdated: fromMillis(d.LastUpdated),
		EngagementStats: domain.EngagementStats{
			Views:           d.EngagementStats["views"],
			ItemClicks:      d.EngagementStats["itemClicks"],
			CallClicks:      d.EngagementStats["callClicks"],
			WhatsappClicks:  d.EngagementStats["whatsappClicks"],
			DirectionClicks: d.EngagementStats["directionClicks"],
		},
		ShareStats: domain.ShareStats{
			Whatsapp: d.ShareStats["whatsapp"],
			Facebook: d.ShareStats["facebook"],
			Twitter:  d.ShareStats["twitter"],
			Copy:     d.ShareStats["copy"],
		},
	}
}

func zeroEngagementStats() map[string]int64 {
	return map[string]int64{"views": 0, "itemClicks": 0, "callClicks": 0, "whatsappClicks": 0, "directionClicks": 0}
}

func zeroShareStats() map[string]int64 {
	return map[string]int64{"whatsapp": 0, "facebook": 0, "twitter": 0, "copy": 0}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
