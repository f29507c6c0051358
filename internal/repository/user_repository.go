package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// User mirrors the 'users' table. Token/TokenExpiresAt carry the user's
// current session token; an empty token means no active session.
type User struct {
	ID             uint64
	UserName       string
	PasswordHash   string
	Roles          string
	Token          string
	TokenExpiresAt sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,user_name,password_hash,roles,token,token_expires_at,created_at,updated_at"

// Create inserts a user with an already-hashed password and returns its ID.
func (r *UserRepo) Create(ctx context.Context, name, passwordHash, roles string) (uint64, error) {
	name = strings.TrimSpace(name)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (user_name, password_hash, roles) VALUES (?,?,?)",
		name, passwordHash, roles)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrNameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByName fetches a user by name.
func (r *UserRepo) GetByName(ctx context.Context, name string) (User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE user_name=? LIMIT 1", strings.TrimSpace(name))
}

// GetByToken fetches the user holding the given session token. Expiry is
// the caller's concern; this only performs the storage lookup.
func (r *UserRepo) GetByToken(ctx context.Context, token string) (User, error) {
	return r.getOne(ctx, "SELECT "+userCols+" FROM users WHERE token=? AND token<>'' LIMIT 1", token)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.UserName, &u.PasswordHash, &u.Roles,
		&u.Token, &u.TokenExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// SetToken stores a freshly issued token for the user, replacing whatever
// token was there before.
func (r *UserRepo) SetToken(ctx context.Context, id uint64, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token=?, token_expires_at=? WHERE id=?",
		token, expiresAt.UTC(), id)
	return err
}

// ClearToken drops the user's session token regardless of its expiry.
func (r *UserRepo) ClearToken(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token='', token_expires_at=NULL WHERE id=?", id)
	return err
}

// ClearExpiredTokens revokes every token whose expiry instant has passed
// and reports how many rows it touched. Called by the background reaper.
func (r *UserRepo) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token='', token_expires_at=NULL WHERE token<>'' AND token_expires_at<?",
		now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
