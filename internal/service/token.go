package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/KangDroid/CLMasterServer/internal/repository"
	"github.com/KangDroid/CLMasterServer/internal/utils"
)

// UserStore is the slice of the user repository the services need. The
// concrete implementation is repository.UserRepo; tests substitute an
// in-memory fake.
type UserStore interface {
	Create(ctx context.Context, name, passwordHash, roles string) (uint64, error)
	GetByName(ctx context.Context, name string) (repository.User, error)
	GetByToken(ctx context.Context, token string) (repository.User, error)
	SetToken(ctx context.Context, id uint64, token string, expiresAt time.Time) error
	ClearToken(ctx context.Context, id uint64) error
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenService issues and resolves the opaque session tokens. A token is
// stored on its user's record; issuing a new one replaces the old one,
// and expiry clears the stored value so revocation is visible in storage
// even when no further requests arrive.
type TokenService struct {
	users UserStore
	ttl   time.Duration
}

func NewTokenService(users UserStore, ttl time.Duration) *TokenService {
	return &TokenService{users: users, ttl: ttl}
}

// Issue derives a fresh session token for the user and stores it with
// expiry = now + TTL. Any previously stored token for the user stops
// being valid at this point.
func (s *TokenService) Issue(ctx context.Context, user repository.User, clientAddr string) (string, time.Time, error) {
	token := utils.SessionToken(user.UserName, user.PasswordHash, clientAddr)
	expiresAt := time.Now().UTC().Add(s.ttl)
	if err := s.users.SetToken(ctx, user.ID, token, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: store token: %v", ErrUnknown, err)
	}
	return token, expiresAt, nil
}

// Resolve maps a token back to its user. It fails with ErrUnauthorized
// when the token is unknown or past its expiry instant; an expired token
// found on read is cleared immediately rather than waiting for the
// reaper sweep.
func (s *TokenService) Resolve(ctx context.Context, token string) (repository.User, error) {
	if token == "" {
		return repository.User{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	user, err := s.users.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.User{}, fmt.Errorf("%w: cannot find user, please re-login", ErrUnauthorized)
		}
		return repository.User{}, fmt.Errorf("%w: token lookup: %v", ErrUnknown, err)
	}
	if !user.TokenExpiresAt.Valid || !time.Now().UTC().Before(user.TokenExpiresAt.Time) {
		// Last-writer-wins with the reaper is fine: both only ever clear.
		_ = s.users.ClearToken(ctx, user.ID)
		return repository.User{}, fmt.Errorf("%w: token expired, please re-login", ErrUnauthorized)
	}
	return user, nil
}

// RunReaper sweeps expired tokens on the given interval until the context
// is cancelled. A single sweeping goroutine replaces one timer per
// session, so issuing many tokens never accumulates timer handles.
func (s *TokenService) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("token-reaper: sweeping every %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("token-reaper: stopped")
			return
		case <-ticker.C:
			n, err := s.users.ClearExpiredTokens(ctx, time.Now().UTC())
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("token-reaper: sweep failed: %v", err)
				}
				continue
			}
			if n > 0 {
				log.Printf("token-reaper: revoked %d expired token(s)", n)
			}
		}
	}
}
