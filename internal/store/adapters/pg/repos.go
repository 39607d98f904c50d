package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
)

func splitList(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}

// ─── ClientRepository ───

type clientRepo struct{ pool *pgxpool.Pool }

func scanClient(row pgx.Row) (*repository.Client, error) {
	var (
		c              repository.Client
		redirects, scp string
	)
	if err := row.Scan(&c.ClientID, &c.Name, &c.SecretEnc, &redirects, &scp, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.RedirectURIs = splitList(redirects)
	c.Scopes = splitList(scp)
	return &c, nil
}

func (r *clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	const query = `
		SELECT client_id, name, secret_enc, redirect_uris, scope, created_at
		FROM oauth_client WHERE client_id = $1
	`
	c, err := scanClient(r.pool.QueryRow(ctx, query, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get client: %w", err)
	}
	return c, nil
}

func (r *clientRepo) List(ctx context.Context) ([]repository.Client, error) {
	const query = `
		SELECT client_id, name, secret_enc, redirect_uris, scope, created_at
		FROM oauth_client ORDER BY client_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pg: list clients: %w", err)
	}
	defer rows.Close()

	var out []repository.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan client: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *clientRepo) Create(ctx context.Context, c repository.Client) error {
	const query = `
		INSERT INTO oauth_client (client_id, name, secret_enc, redirect_uris, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	`
	var created *time.Time
	if !c.CreatedAt.IsZero() {
		created = &c.CreatedAt
	}
	_, err := r.pool.Exec(ctx, query,
		c.ClientID, c.Name, c.SecretEnc, strings.Join(c.RedirectURIs, " "), strings.Join(c.Scopes, " "), created,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("pg: create client: %w", err)
	}
	return nil
}

// ─── UserRepository ───

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	const query = `SELECT id, username, role, created_at FROM app_user WHERE id = $1`
	var u repository.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, username, role string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, repository.ErrInvalidInput
	}
	if role == "" {
		role = repository.DefaultRole
	}
	const query = `
		INSERT INTO app_user (username, role) VALUES ($1, $2)
		RETURNING id, username, role, created_at
	`
	var u repository.User
	err := r.pool.QueryRow(ctx, query, username, role).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("pg: create user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) List(ctx context.Context) ([]repository.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, role, created_at FROM app_user ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pg: list users: %w", err)
	}
	defer rows.Close()

	var out []repository.User
	for rows.Next() {
		var u repository.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("pg: scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ─── CodeRepository ───

type codeRepo struct{ pool *pgxpool.Pool }

func (r *codeRepo) Create(ctx context.Context, c repository.AuthorizationCode) error {
	const query = `
		INSERT INTO authorization_code (code_hash, client_id, user_id, scope, redirect_uri, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		c.CodeHash, c.ClientID, c.UserID, strings.Join(c.Scope, " "), c.RedirectURI, c.CreatedAt, c.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("pg: create code: %w", err)
	}
	return nil
}

// Consume: un único UPDATE condicional con RETURNING. La fila queda
// bloqueada durante el UPDATE, así que de N canjes concurrentes solo uno
// ve consumed_at IS NULL.
func (r *codeRepo) Consume(ctx context.Context, in repository.ConsumeInput) (*repository.AuthorizationCode, error) {
	const query = `
		UPDATE authorization_code SET consumed_at = $5
		WHERE code_hash = $1 AND client_id = $2 AND redirect_uri = $3
		  AND consumed_at IS NULL AND expires_at > $4
		RETURNING code_hash, client_id, user_id, scope, redirect_uri, created_at, expires_at, consumed_at
	`
	var (
		c   repository.AuthorizationCode
		scp string
	)
	err := r.pool.QueryRow(ctx, query, in.CodeHash, in.ClientID, in.RedirectURI, in.Now, in.Now).Scan(
		&c.CodeHash, &c.ClientID, &c.UserID, &scp, &c.RedirectURI, &c.CreatedAt, &c.ExpiresAt, &c.ConsumedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: consume code: %w", err)
	}
	c.Scope = splitList(scp)
	return &c, nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM authorization_code WHERE expires_at <= $1 OR consumed_at IS NOT NULL`, now)
	if err != nil {
		return 0, fmt.Errorf("pg: delete expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ─── TokenRepository ───

type tokenRepo struct{ pool *pgxpool.Pool }

func (r *tokenRepo) Create(ctx context.Context, t repository.Token) error {
	const query = `
		INSERT INTO oauth_token (id, access_hash, refresh_hash, client_id, user_id, scope, issued_at, expires_at, refresh_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		t.ID, t.AccessHash, nullIfEmpty(t.RefreshHash), t.ClientID, t.UserID, strings.Join(t.Scope, " "),
		t.IssuedAt, t.ExpiresAt, t.RefreshExpiresAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("pg: create token: %w", err)
	}
	return nil
}

func (r *tokenRepo) getBy(ctx context.Context, column, hash string) (*repository.Token, error) {
	if hash == "" {
		return nil, repository.ErrNotFound
	}
	query := `
		SELECT id, access_hash, COALESCE(refresh_hash, ''), client_id, user_id, scope, issued_at, expires_at, refresh_expires_at
		FROM oauth_token WHERE ` + column + ` = $1`
	var (
		t   repository.Token
		scp string
	)
	err := r.pool.QueryRow(ctx, query, hash).Scan(
		&t.ID, &t.AccessHash, &t.RefreshHash, &t.ClientID, &t.UserID, &scp, &t.IssuedAt, &t.ExpiresAt, &t.RefreshExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get token: %w", err)
	}
	t.Scope = splitList(scp)
	return &t, nil
}

func (r *tokenRepo) GetByAccessHash(ctx context.Context, hash string) (*repository.Token, error) {
	return r.getBy(ctx, "access_hash", hash)
}

func (r *tokenRepo) GetByRefreshHash(ctx context.Context, hash string) (*repository.Token, error) {
	return r.getBy(ctx, "refresh_hash", hash)
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	sec := now.Unix()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM oauth_token WHERE expires_at <= $1 AND refresh_expires_at <= $1`, sec)
	if err != nil {
		return 0, fmt.Errorf("pg: delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
