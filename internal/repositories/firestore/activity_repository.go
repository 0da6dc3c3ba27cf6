package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/showcase/api/internal/domain"
	pfirestore "github.com/showcase/api/internal/platform/firestore"
	"github.com/showcase/api/internal/platform/pagination"
	"github.com/showcase/api/internal/repositories"
)

const (
	activityCollection      = "catalogActivity"
	defaultActivityPageSize = 20
	maxActivityPageSize     = 100
)

// ActivityRepository stores one document per catalog event, keyed by event id.
type ActivityRepository struct {
	base *pfirestore.BaseRepository[activityDocument]
}

var _ repositories.ActivityRepository = (*ActivityRepository)(nil)

// NewActivityRepository constructs a Firestore-backed activity feed repository.
func NewActivityRepository(provider *pfirestore.Provider) (*ActivityRepository, error) {
	if provider == nil {
		return nil, errors.New("activity repository requires firestore provider")
	}
	return &ActivityRepository{
		base: pfirestore.NewBaseRepository[activityDocument](provider, activityCollection, nil, nil),
	}, nil
}

// Append creates the entry. A second delivery of the same event is a no-op.
func (r *ActivityRepository) Append(ctx context.Context, entry domain.ActivityEntry) error {
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return errors.New("activity id is required")
	}
	if strings.TrimSpace(entry.UserID) == "" {
		return errors.New("activity user id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	_, err = ref.Create(ctx, activityDocument{
		UserID:       entry.UserID,
		CatalogID:    entry.CatalogID,
		Type:         string(entry.Type),
		Slug:         entry.Slug,
		BusinessName: entry.BusinessName,
		OccurredAt:   toMillis(entry.OccurredAt),
		RecordedAt:   toMillis(entry.RecordedAt),
	})
	if err == nil {
		return nil
	}
	wrapped := pfirestore.WrapError("activity.append", err)
	var repoErr repositories.RepositoryError
	if errors.As(wrapped, &repoErr) && repoErr.IsConflict() {
		return nil
	}
	return wrapped
}

// ListByUser returns the account's entries, newest first.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.ActivityEntry], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[domain.ActivityEntry]{}, errors.New("user id is required")
	}
	pageSize := pager.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultActivityPageSize
	case pageSize > maxActivityPageSize:
		pageSize = maxActivityPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.ActivityEntry]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", userID).
			OrderBy("occurredAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.Key, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.ActivityEntry]{}, err
	}

	var page domain.CursorPage[domain.ActivityEntry]
	for i, doc := range docs {
		if i == pageSize {
			last := docs[pageSize-1]
			page.NextPageToken, err = pagination.EncodeToken(pagination.Cursor{Key: last.Data.OccurredAt, ID: last.ID})
			if err != nil {
				return domain.CursorPage[domain.ActivityEntry]{}, err
			}
			break
		}
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	return page, nil
}

type activityDocument struct {
	UserID       string `firestore:"userId"`
	CatalogID    string `firestore:"catalogId"`
	Type         string `firestore:"type"`
	Slug         string `firestore:"slug"`
	BusinessName string `firestore:"businessName"`
	OccurredAt   int64  `firestore:"occurredAt"`
	RecordedAt   int64  `firestore:"recordedAt"`
}

func (d activityDocument) toDomain(id string) domain.ActivityEntry {
	return domain.ActivityEntry{
		ID:           id,
		UserID:       d.UserID,
		CatalogID:    d.CatalogID,
		Type:         domain.CatalogEventType(d.Type),
		Slug:         d.Slug,
		BusinessName: d.BusinessName,
		OccurredAt:   fromMillis(d.OccurredAt),
		RecordedAt:   fromMillis(d.RecordedAt),
	}
}
