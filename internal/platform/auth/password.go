package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

var (
	// ErrInvalidCredentials is returned when the email/password pair is rejected.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrAccountDisabled is returned for accounts an operator has disabled.
	ErrAccountDisabled = errors.New("auth: account disabled")
)

// Session is the token bundle returned by a successful password sign-in.
type Session struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// PasswordSignIn exchanges email/password credentials for Firebase tokens through the
// Identity Toolkit REST API. The Admin SDK cannot verify passwords.
type PasswordSignIn struct {
	service *identitytoolkit.Service
	now     func() time.Time
}

// NewPasswordSignIn builds a client authenticated with the project's web API key.
func NewPasswordSignIn(ctx context.Context, apiKey string, opts ...option.ClientOption) (*PasswordSignIn, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("auth: firebase web api key is required")
	}
	clientOpts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise identity toolkit: %w", err)
	}
	return &PasswordSignIn{service: svc, now: time.Now}, nil
}

// SignIn verifies the credentials and returns a fresh session.
func (p *PasswordSignIn) SignIn(ctx context.Context, email, password string) (Session, error) {
	if p == nil || p.service == nil {
		return Session{}, errors.New("auth: password sign-in not configured")
	}
	resp, err := p.service.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return Session{}, classifySignInError(err)
	}

	session := Session{
		UID:          resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}
	if secs, err := strconv.ParseInt(fmt.Sprint(resp.ExpiresIn), 10, 64); err == nil && secs > 0 {
		session.ExpiresAt = p.now().Add(time.Duration(secs) * time.Second).UTC()
	}
	return session, nil
}

func classifySignInError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	msg := apiErr.Message
	switch {
	case strings.Contains(msg, "EMAIL_NOT_FOUND"),
		strings.Contains(msg, "INVALID_PASSWORD"),
		strings.Contains(msg, "INVALID_LOGIN_CREDENTIALS"),
		strings.Contains(msg, "INVALID_EMAIL"):
		return ErrInvalidCredentials
	case strings.Contains(msg, "USER_DISABLED"):
		return ErrAccountDisabled
	default:
		return fmt.Errorf("auth: sign in failed: %w", err)
	}
}
