package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/platform/auth"
	"github.com/showcase/api/internal/repositories"
)

const (
	defaultBusinessName = "My Business"
	minPasswordLength   = 6
)

var (
	// ErrAccountInvalidInput indicates the sign-up or sign-in request failed validation.
	ErrAccountInvalidInput = errors.New("account: invalid input")
	// ErrAccountAuthFailed indicates the credentials were rejected.
	ErrAccountAuthFailed = errors.New("account: authentication failed")
	// ErrAccountEmailTaken indicates an account already exists for the email.
	ErrAccountEmailTaken = errors.New("account: email already registered")
	// ErrAccountDisabled indicates the account was disabled by an operator.
	ErrAccountDisabled = errors.New("account: disabled")
	// ErrAccountUnavailable wraps identity or persistence failures.
	ErrAccountUnavailable = errors.New("account: unavailable")
)

// AccountDirectory is the identity collaborator used to manage accounts.
type AccountDirectory interface {
	CreateUser(ctx context.Context, account auth.NewAccount) (string, error)
	DeleteUser(ctx context.Context, uid string) error
	RevokeSessions(ctx context.Context, uid string) error
}

// PasswordAuthenticator exchanges email/password credentials for a session.
type PasswordAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
}

// AccountServiceDeps wires dependencies for the account service implementation.
type AccountServiceDeps struct {
	Directory  AccountDirectory
	Passwords  PasswordAuthenticator
	Businesses repositories.BusinessRepository
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type accountService struct {
	directory  AccountDirectory
	passwords  PasswordAuthenticator
	businesses repositories.BusinessRepository
	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
	validate   *validator.Validate
}

var _ AccountService = (*accountService)(nil)

// NewAccountService constructs an AccountService. Passwords may be nil, in which case
// SignIn reports the service as unavailable.
func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	if deps.Directory == nil {
		return nil, errors.New("account service: directory is required")
	}
	if deps.Businesses == nil {
		return nil, errors.New("account service: business repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &accountService{
		directory:  deps.Directory,
		passwords:  deps.Passwords,
		businesses: deps.Businesses,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

type signUpInput struct {
	Email        string `validate:"required,email,max=254"`
	Password     string `validate:"required,min=6,max=128"`
	BusinessName string `validate:"required,max=120"`
	BusinessType string `validate:"max=60"`
	Phone        string `validate:"max=32"`
}

// SignUp creates the identity and then the business profile. When the profile write
// fails the identity is deleted again so a retry can register the same email.
func (s *accountService) SignUp(ctx context.Context, cmd SignUpCommand) (string, error) {
	input := signUpInput{
		Email:        strings.ToLower(strings.TrimSpace(cmd.Email)),
		Password:     cmd.Password,
		BusinessName: strings.TrimSpace(cmd.BusinessName),
		BusinessType: strings.TrimSpace(cmd.BusinessType),
		Phone:        strings.TrimSpace(cmd.Phone),
	}
	if err := s.validate.Struct(input); err != nil {
		return "", fmt.Errorf("%w: %s", ErrAccountInvalidInput, describeValidation(err))
	}

	uid, err := s.directory.CreateUser(ctx, auth.NewAccount{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.BusinessName,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			return "", ErrAccountEmailTaken
		}
		return "", fmt.Errorf("%w: create user: %v", ErrAccountUnavailable, err)
	}

	profile := BusinessProfile{
		ID:           uid,
		BusinessName: input.BusinessName,
		BusinessType: input.BusinessType,
		Phone:        input.Phone,
		Email:        input.Email,
		Plan:         domain.PlanFree,
		CreatedAt:    s.now(),
	}
	if err := s.businesses.Create(ctx, profile); err != nil {
		rollbackCtx := context.WithoutCancel(ctx)
		if delErr := s.directory.DeleteUser(rollbackCtx, uid); delErr != nil {
			s.logger(ctx, "account.signup_rollback_failed", map[string]any{
				"uid":   uid,
				"error": delErr.Error(),
			})
		}
		return "", fmt.Errorf("%w: create business profile: %v", ErrAccountUnavailable, err)
	}

	s.logger(ctx, "account.signed_up", map[string]any{"uid": uid, "businessType": input.BusinessType})
	return uid, nil
}

func (s *accountService) SignIn(ctx context.Context, email, password string) (AccountSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return AccountSession{}, fmt.Errorf("%w: a valid email is required", ErrAccountInvalidInput)
	}
	if len(password) < minPasswordLength {
		return AccountSession{}, ErrAccountAuthFailed
	}
	if s.passwords == nil {
		return AccountSession{}, fmt.Errorf("%w: password sign-in not configured", ErrAccountUnavailable)
	}

	session, err := s.passwords.SignIn(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return AccountSession{}, ErrAccountAuthFailed
		case errors.Is(err, auth.ErrAccountDisabled):
			return AccountSession{}, ErrAccountDisabled
		default:
			return AccountSession{}, fmt.Errorf("%w: %v", ErrAccountUnavailable, err)
		}
	}
	return AccountSession{
		UID:          session.UID,
		Email:        session.Email,
		IDToken:      session.IDToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// SignOut revokes every refresh token of the account. Already issued ID tokens stay valid
// until they expire unless the verifier checks revocation.
func (s *accountService) SignOut(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrAccountInvalidInput)
	}
	if err := s.directory.RevokeSessions(ctx, userID); err != nil {
		return fmt.Errorf("%w: revoke sessions: %v", ErrAccountUnavailable, err)
	}
	s.logger(ctx, "account.signed_out", map[string]any{"uid": userID})
	return nil
}

// CurrentAccount returns the caller's business profile, creating a default one for
// accounts that never went through SignUp (federated sign-in).
func (s *accountService) CurrentAccount(ctx context.Context, identity AccountIdentity) (BusinessProfile, error) {
	uid := strings.TrimSpace(identity.UID)
	if uid == "" {
		return BusinessProfile{}, fmt.Errorf("%w: user id is required", ErrAccountInvalidInput)
	}

	profile, err := s.businesses.FindByID(ctx, uid)
	if err == nil {
		return profile, nil
	}
	if !isRepoNotFound(err) {
		return BusinessProfile{}, fmt.Errorf("%w: %v", ErrAccountUnavailable, err)
	}

	name := strings.TrimSpace(identity.DisplayName)
	if name == "" {
		name = defaultBusinessName
	}
	profile = BusinessProfile{
		ID:           uid,
		BusinessName: name,
		Email:        strings.ToLower(strings.TrimSpace(identity.Email)),
		Plan:         domain.PlanFree,
		CreatedAt:    s.now(),
	}
	if err := s.businesses.Create(ctx, profile); err != nil {
		if !isRepoConflict(err) {
			return BusinessProfile{}, fmt.Errorf("%w: %v", ErrAccountUnavailable, err)
		}
		// Another request created it first.
		existing, findErr := s.businesses.FindByID(ctx, uid)
		if findErr != nil {
			return BusinessProfile{}, fmt.Errorf("%w: %v", ErrAccountUnavailable, findErr)
		}
		return existing, nil
	}
	s.logger(ctx, "account.profile_created", map[string]any{"uid": uid})
	return profile, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		if field != "" {
			field = strings.ToLower(field[:1]) + field[1:]
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
