package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/auth"
	"github.com/ariefcatur/little-lemon/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `u.id, u.username, u.email, u.is_staff, u.is_superuser, u.date_joined`

func scanUser(row pgx.Row, extra ...any) (User, error) {
	var u User
	dest := append([]any{&u.ID, &u.Username, &u.Email, &u.IsStaff, &u.IsSuperuser, &u.DateJoined}, extra...)
	err := row.Scan(dest...)
	return u, err
}

// CreateUser hashes the password and inserts the account.
func (r *Repo) CreateUser(ctx context.Context, n NewUser) (User, error) {
	hash, err := auth.HashPassword(n.Password)
	if err != nil {
		return User{}, apperr.Validation("%v", err)
	}
	u, err := scanUser(r.DB.QueryRow(ctx, `
		INSERT INTO users AS u (username, email, password_hash, is_staff, is_superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns, n.Username, n.Email, hash, n.IsStaff, n.IsSuperuser))
	if postgres.IsUniqueViolation(err) {
		e := &apperr.Error{Kind: apperr.KindValidation, Message: "invalid input",
			Fields: map[string][]string{"username": {"A user with that username already exists."}}}
		return User{}, e.Wrap(err)
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repo) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id=$1`, id))
	if postgres.IsNoRows(err) {
		return User{}, apperr.NotFound("user %d not found", id).Wrap(err)
	}
	return u, err
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username=$1`, username))
	if postgres.IsNoRows(err) {
		return User{}, apperr.NotFound("user %q not found", username).Wrap(err)
	}
	return u, err
}

// Credentials returns the user and its password hash.
func (r *Repo) Credentials(ctx context.Context, username string) (User, string, error) {
	var hash string
	u, err := scanUser(r.DB.QueryRow(ctx,
		`SELECT `+userColumns+`, u.password_hash FROM users u WHERE u.username=$1`, username), &hash)
	if postgres.IsNoRows(err) {
		return User{}, "", apperr.NotFound("user %q not found", username).Wrap(err)
	}
	return u, hash, err
}

func (r *Repo) UserByToken(ctx context.Context, key string) (User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM auth_tokens t JOIN users u ON u.id = t.user_id
		WHERE t.key=$1`, key))
	if postgres.IsNoRows(err) {
		return User{}, apperr.Unauthenticated("Invalid token.").Wrap(err)
	}
	return u, err
}

// IssueToken stores key for userID unless the user already has a token,
// in which case the existing key is returned.
func (r *Repo) IssueToken(ctx context.Context, userID int64, key string) (string, error) {
	var out string
	err := r.DB.QueryRow(ctx, `
		INSERT INTO auth_tokens(key, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING key`, key, userID).Scan(&out)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return out, nil
}

func (r *Repo) DeleteToken(ctx context.Context, key string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM auth_tokens WHERE key=$1`, key)
	return err
}

func (r *Repo) GroupsOf(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT g.name FROM user_groups ug JOIN groups g ON g.id = ug.group_id
		WHERE ug.user_id=$1 ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Repo) InGroup(ctx context.Context, userID int64, group string) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_groups ug JOIN groups g ON g.id = ug.group_id
			WHERE ug.user_id=$1 AND g.name=$2
		)`, userID, group).Scan(&ok)
	return ok, err
}

func (r *Repo) ListMembers(ctx context.Context, group string) ([]User, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN user_groups ug ON ug.user_id = u.id
		JOIN groups g ON g.id = ug.group_id
		WHERE g.name=$1
		ORDER BY u.id`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AddToGroup is a no-op when the membership already exists.
func (r *Repo) AddToGroup(ctx context.Context, userID int64, group string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO user_groups(user_id, group_id)
		SELECT $1, g.id FROM groups g WHERE g.name=$2
		ON CONFLICT DO NOTHING`, userID, group)
	if postgres.IsForeignKeyViolation(err) {
		return apperr.NotFound("user %d not found", userID).Wrap(err)
	}
	return err
}

func (r *Repo) RemoveFromGroup(ctx context.Context, userID int64, group string) error {
	_, err := r.DB.Exec(ctx, `
		DELETE FROM user_groups ug USING groups g
		WHERE ug.group_id = g.id AND ug.user_id=$1 AND g.name=$2`, userID, group)
	return err
}
