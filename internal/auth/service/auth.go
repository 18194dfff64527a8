package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tavernworks/doorman/internal/auth/domain"
	"github.com/tavernworks/doorman/internal/auth/store"
	"github.com/tavernworks/doorman/pkg/cryptox"
	"github.com/tavernworks/doorman/pkg/idx"
	"github.com/tavernworks/doorman/pkg/slogx"
)

var (
	ErrAlreadyRegistered = errors.New("already_registered")
	ErrUserNotFound      = errors.New("user_not_found")
	ErrInvalidResetToken = errors.New("invalid_reset_token")
)

// AuthService is the credential and session state machine. It registers
// users, verifies passwords, manages the single session token per user, and
// issues/redeems single-use password-reset tokens.
//
// Login and session lookups deliberately do not distinguish "no such user"
// from "wrong credential": both collapse to false/nil so callers cannot probe
// which emails are registered. Reset-token operations do fail loudly, since
// they already require proof of email or token possession.
type AuthService struct {
	Store store.Store
}

// Register creates a new user with a freshly hashed password. It returns
// ErrAlreadyRegistered when the email is taken; no partial state is left
// behind on failure.
func (s *AuthService) Register(ctx context.Context, email, password string) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Users().GetUserByEmail(ctx, email)
		if err == nil {
			return ErrAlreadyRegistered
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.Users().CreateUser(ctx, user)
	})
	if err != nil {
		// The unique index catches racing registrations the pre-check missed.
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrAlreadyRegistered
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// ValidateLogin reports whether the email/password pair is valid. An unknown
// email and a wrong password are indistinguishable: both return (false, nil).
func (s *AuthService) ValidateLogin(ctx context.Context, email, password string) (bool, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return cryptox.VerifyPassword(password, user.PasswordHash) == nil, nil
}

// CreateSession mints a fresh session token for the user and stores it,
// replacing any prior session (last writer wins, one session per user).
// Unknown emails yield ("", nil), matching ValidateLogin's policy.
func (s *AuthService) CreateSession(ctx context.Context, email string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	var found bool
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		found = true
		return tx.Users().UpdateSessionID(ctx, user.ID, &token)
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return token, nil
}

// GetUserBySession resolves a session token to its holder. Empty tokens and
// lookup misses return (nil, nil); a miss is a normal outcome, not an error.
func (s *AuthService) GetUserBySession(ctx context.Context, sessionID string) (*domain.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	user, err := s.Store.Users().GetUserBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// DestroySession clears the user's session token. An empty user id is a
// no-op, and clearing an already-absent session is not an error, so the
// operation is idempotent.
func (s *AuthService) DestroySession(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	if err := s.Store.Users().UpdateSessionID(ctx, userID, nil); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("session destroyed", slog.String("user_id", userID))
	return nil
}

// IssueResetToken mints a password-reset token for the user and stores it,
// replacing any outstanding one. Returns ErrUserNotFound for unknown emails:
// unlike login, the caller has already proven it knows the email.
func (s *AuthService) IssueResetToken(ctx context.Context, email string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return tx.Users().UpdateResetToken(ctx, user.ID, &token)
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// RedeemReset consumes a reset token: the new password hash is stored and the
// token cleared in a single update, so there is no window where the password
// has changed but the token is still redeemable. Returns ErrInvalidResetToken
// when no user holds the token (including tokens already consumed).
func (s *AuthService) RedeemReset(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return ErrInvalidResetToken
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Store.Users().RedeemResetToken(ctx, resetToken, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	slogx.FromContext(ctx).Info("password updated via reset token")
	return nil
}
