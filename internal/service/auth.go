package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/KangDroid/CLMasterServer/internal/repository"
	"github.com/KangDroid/CLMasterServer/internal/utils"
)

// DefaultRole is assigned to every self-registered user.
const DefaultRole = "ROLE_USER"

// AuthService handles user registration and login against the credential
// store, delegating session issuance to the TokenService.
type AuthService struct {
	users      UserStore
	tokens     *TokenService
	bcryptCost int
}

func NewAuthService(users UserStore, tokens *TokenService, bcryptCost int) *AuthService {
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

// Register stores a new user with a hashed password and the default role,
// returning the registered identifier. Duplicate names fail with
// ErrConflict; the unique index backs the check under concurrency.
func (s *AuthService) Register(ctx context.Context, name, plainPassword string) (string, error) {
	name = strings.TrimSpace(name)
	hash, err := utils.HashPassword(plainPassword, s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: hash password: %v", ErrUnknown, err)
	}
	if _, err := s.users.Create(ctx, name, hash, DefaultRole); err != nil {
		if errors.Is(err, repository.ErrNameExists) {
			return "", fmt.Errorf("%w: user name is already registered: %s", ErrConflict, name)
		}
		return "", fmt.Errorf("%w: save user: %v", ErrUnknown, err)
	}
	return name, nil
}

// Login verifies the credentials and issues a session token bound to the
// client address. The previous token for the user, if any, is replaced.
func (s *AuthService) Login(ctx context.Context, name, plainPassword, clientAddr string) (string, error) {
	user, err := s.users.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: cannot find user: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("%w: user lookup: %v", ErrUnknown, err)
	}
	if !utils.VerifyPassword(user.PasswordHash, plainPassword) {
		return "", fmt.Errorf("%w: password is incorrect", ErrForbidden)
	}
	token, _, err := s.tokens.Issue(ctx, user, clientAddr)
	if err != nil {
		return "", err
	}
	return token, nil
}
