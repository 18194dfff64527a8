package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tavernworks/doorman/internal/auth/domain"
	"github.com/tavernworks/doorman/internal/auth/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the repo works inside
// and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type usersRepo struct {
	q querier
}

const userColumns = `id, email, password_hash, session_id, reset_token, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) GetUserBySessionID(ctx context.Context, sessionID string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE session_id = ?`, sessionID)
	return scanUser(row)
}

func (r *usersRepo) GetUserByResetToken(ctx context.Context, token string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token = ?`, token)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdateSessionID(ctx context.Context, userID string, sessionID *string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET session_id = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(sessionID), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) UpdateResetToken(ctx context.Context, userID string, token *string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET reset_token = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(token), time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) RedeemResetToken(ctx context.Context, token string, newHash string) error {
	// Keyed on the token itself so the password swap and token consumption are
	// one statement. A concurrent redeem of the same token sees zero rows.
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, reset_token = NULL, updated_at = ? WHERE reset_token = ?`,
		newHash, time.Now().UTC(), token)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var sessionID, resetToken sql.NullString
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&sessionID,
		&resetToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.SessionID = mapNullStringPtr(sessionID)
	u.ResetToken = mapNullStringPtr(resetToken)
	return u, nil
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}
