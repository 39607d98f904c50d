package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
)

// ─── ClientRepository ───

type clientRepo struct {
	db *sql.DB
	d  dialect
}

const clientColumns = `client_id, name, secret_enc, redirect_uris, scope, created_at`

func scanClient(sc interface{ Scan(...any) error }) (*repository.Client, error) {
	var (
		c              repository.Client
		redirects, scp string
		created        int64
	)
	if err := sc.Scan(&c.ClientID, &c.Name, &c.SecretEnc, &redirects, &scp, &created); err != nil {
		return nil, err
	}
	c.RedirectURIs = splitList(redirects)
	c.Scopes = splitList(scp)
	c.CreatedAt = fromMillis(created)
	return &c, nil
}

func (r *clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM oauth_client WHERE client_id = ?`, clientID)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get client: %w", r.d.name, err)
	}
	return c, nil
}

func (r *clientRepo) List(ctx context.Context) ([]repository.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM oauth_client ORDER BY client_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: list clients: %w", r.d.name, err)
	}
	defer rows.Close()

	var out []repository.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan client: %w", r.d.name, err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *clientRepo) Create(ctx context.Context, c repository.Client) error {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_client (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ClientID, c.Name, c.SecretEnc, joinList(c.RedirectURIs), joinList(c.Scopes), toMillis(created),
	)
	if r.d.isUnique(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("%s: create client: %w", r.d.name, err)
	}
	return nil
}

// ─── UserRepository ───

type userRepo struct {
	db *sql.DB
	d  dialect
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	var (
		u       repository.User
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, role, created_at FROM app_user WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get user: %w", r.d.name, err)
	}
	u.CreatedAt = fromMillis(created)
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
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO app_user (username, role, created_at) VALUES (?, ?, ?)`,
		username, role, toMillis(now),
	)
	if r.d.isUnique(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("%s: create user: %w", r.d.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%s: user id: %w", r.d.name, err)
	}
	return &repository.User{ID: id, Username: username, Role: role, CreatedAt: now}, nil
}

func (r *userRepo) List(ctx context.Context) ([]repository.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, role, created_at FROM app_user ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: list users: %w", r.d.name, err)
	}
	defer rows.Close()

	var out []repository.User
	for rows.Next() {
		var (
			u       repository.User
			created int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &created); err != nil {
			return nil, fmt.Errorf("%s: scan user: %w", r.d.name, err)
		}
		u.CreatedAt = fromMillis(created)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ─── CodeRepository ───

type codeRepo struct {
	db *sql.DB
	d  dialect
}

func (r *codeRepo) Create(ctx context.Context, c repository.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authorization_code (code_hash, client_id, user_id, scope, redirect_uri, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.CodeHash, c.ClientID, c.UserID, joinList(c.Scope), c.RedirectURI, toMillis(c.CreatedAt), toMillis(c.ExpiresAt),
	)
	if r.d.isUnique(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("%s: create code: %w", r.d.name, err)
	}
	return nil
}

// Consume: UPDATE condicional dentro de una transacción. Solo un canje
// concurrente ve RowsAffected == 1; el resto recibe ErrNotFound.
func (r *codeRepo) Consume(ctx context.Context, in repository.ConsumeInput) (*repository.AuthorizationCode, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin consume: %w", r.d.name, err)
	}
	defer tx.Rollback() //nolint:errcheck

	nowMs := toMillis(in.Now)
	res, err := tx.ExecContext(ctx,
		`UPDATE authorization_code SET consumed_at = ?
		 WHERE code_hash = ? AND client_id = ? AND redirect_uri = ?
		   AND consumed_at IS NULL AND expires_at > ?`,
		nowMs, in.CodeHash, in.ClientID, in.RedirectURI, nowMs,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: consume code: %w", r.d.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: consume rows: %w", r.d.name, err)
	}
	if n != 1 {
		return nil, repository.ErrNotFound
	}

	var (
		c                  repository.AuthorizationCode
		scp                string
		created, exp, cons int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT code_hash, client_id, user_id, scope, redirect_uri, created_at, expires_at, consumed_at
		 FROM authorization_code WHERE code_hash = ?`, in.CodeHash,
	).Scan(&c.CodeHash, &c.ClientID, &c.UserID, &scp, &c.RedirectURI, &created, &exp, &cons)
	if err != nil {
		return nil, fmt.Errorf("%s: read consumed code: %w", r.d.name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit consume: %w", r.d.name, err)
	}

	c.Scope = splitList(scp)
	c.CreatedAt = fromMillis(created)
	c.ExpiresAt = fromMillis(exp)
	consumed := fromMillis(cons)
	c.ConsumedAt = &consumed
	return &c, nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_code WHERE expires_at <= ? OR consumed_at IS NOT NULL`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("%s: delete expired codes: %w", r.d.name, err)
	}
	return res.RowsAffected()
}

// ─── TokenRepository ───

type tokenRepo struct {
	db *sql.DB
	d  dialect
}

const tokenColumns = `id, access_hash, refresh_hash, client_id, user_id, scope, issued_at, expires_at, refresh_expires_at`

func (r *tokenRepo) Create(ctx context.Context, t repository.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_token (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccessHash, nullIfEmpty(t.RefreshHash), t.ClientID, t.UserID, joinList(t.Scope),
		t.IssuedAt, t.ExpiresAt, t.RefreshExpiresAt,
	)
	if r.d.isUnique(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("%s: create token: %w", r.d.name, err)
	}
	return nil
}

func (r *tokenRepo) getBy(ctx context.Context, column, hash string) (*repository.Token, error) {
	if hash == "" {
		return nil, repository.ErrNotFound
	}
	var (
		t       repository.Token
		refresh sql.NullString
		scp     string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM oauth_token WHERE `+column+` = ?`, hash,
	).Scan(&t.ID, &t.AccessHash, &refresh, &t.ClientID, &t.UserID, &scp, &t.IssuedAt, &t.ExpiresAt, &t.RefreshExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get token: %w", r.d.name, err)
	}
	t.RefreshHash = refresh.String
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
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_token WHERE expires_at <= ? AND refresh_expires_at <= ?`, sec, sec)
	if err != nil {
		return 0, fmt.Errorf("%s: delete expired tokens: %w", r.d.name, err)
	}
	return res.RowsAffected()
}
