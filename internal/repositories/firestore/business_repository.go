package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/showcase/api/internal/domain"
	pfirestore "github.com/showcase/api/internal/platform/firestore"
	"github.com/showcase/api/internal/repositories"
)

const businessCollection = "businesses"

// BusinessRepository stores business profiles keyed by the owning account id.
type BusinessRepository struct {
	base *pfirestore.BaseRepository[businessDocument]
}

var _ repositories.BusinessRepository = (*BusinessRepository)(nil)

// NewBusinessRepository constructs a Firestore-backed business profile repository.
func NewBusinessRepository(provider *pfirestore.Provider) (*BusinessRepository, error) {
	if provider == nil {
		return nil, errors.New("business repository requires firestore provider")
	}
	return &BusinessRepository{
		base: pfirestore.NewBaseRepository[businessDocument](provider, businessCollection, nil, nil),
	}, nil
}

// Create writes the profile only if no document exists for the account yet.
func (r *BusinessRepository) Create(ctx context.Context, profile domain.BusinessProfile) error {
	id := strings.TrimSpace(profile.ID)
	if id == "" {
		return errors.New("business id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainBusiness(profile)); err != nil {
		return pfirestore.WrapError("businesses.create", err)
	}
	return nil
}

// FindByID loads the profile for the account.
func (r *BusinessRepository) FindByID(ctx context.Context, userID string) (domain.BusinessProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.BusinessProfile{}, errors.New("user id is required")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.BusinessProfile{}, err
	}
	profile := toDomainBusiness(doc.Data)
	profile.ID = doc.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = doc.CreateTime
	}
	return profile, nil
}

// Delete removes the profile. Used to roll back a sign-up whose identity step failed.
func (r *BusinessRepository) Delete(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return r.base.Delete(ctx, userID)
}

type businessDocument struct {
	BusinessName string    `firestore:"businessName"`
	BusinessType string    `firestore:"businessType"`
	Phone        string    `firestore:"phone"`
	Email        string    `firestore:"email"`
	Plan         string    `firestore:"plan"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

func fromDomainBusiness(p domain.BusinessProfile) businessDocument {
	plan := p.Plan
	if plan == "" {
		plan = domain.PlanFree
	}
	return businessDocument{
		BusinessName: p.BusinessName,
		BusinessType: p.BusinessType,
		Phone:        p.Phone,
		Email:        p.Email,
		Plan:         string(plan),
		CreatedAt:    p.CreatedAt.UTC(),
	}
}

func toDomainBusiness(d businessDocument) domain.BusinessProfile {
	return domain.BusinessProfile{
		BusinessName: d.BusinessName,
		BusinessType: d.BusinessType,
		Phone:        d.Phone,
		Email:        d.Email,
		Plan:         domain.Plan(d.Plan),
		CreatedAt:    d.CreatedAt,
	}
}

