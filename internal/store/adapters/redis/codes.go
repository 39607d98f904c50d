// Package redis implementa un CodeRepository sobre Redis, para desplegar
// varias réplicas del servidor sin una base SQL compartida para codes.
//
// Cada code es una key {prefix}code:{hash} con el registro en JSON y TTL igual
// a su expiración más un margen. Consume usa WATCH/MULTI: si otra conexión
// modifica la key entre la lectura y el EXEC la transacción falla y el canje
// se reporta como no encontrado.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
)

const retention = time.Minute

// Options configura el cliente.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewClient crea el cliente y verifica conectividad.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return rdb, nil
}

// CodeStore implementa repository.CodeRepository.
type CodeStore struct {
	rdb    *goredis.Client
	prefix string
}

func NewCodeStore(rdb *goredis.Client, prefix string) *CodeStore {
	return &CodeStore{rdb: rdb, prefix: prefix}
}

var _ repository.CodeRepository = (*CodeStore)(nil)

type codeRecord struct {
	ClientID    string     `json:"client_id"`
	UserID      int64      `json:"user_id"`
	Scope       []string   `json:"scope"`
	RedirectURI string     `json:"redirect_uri"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ConsumedAt  *time.Time `json:"consumed_at,omitempty"`
}

func (s *CodeStore) key(hash string) string { return s.prefix + "code:" + hash }

func (s *CodeStore) Create(ctx context.Context, c repository.AuthorizationCode) error {
	b, err := json.Marshal(codeRecord{
		ClientID: c.ClientID, UserID: c.UserID, Scope: c.Scope, RedirectURI: c.RedirectURI,
		CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("redis: encode code: %w", err)
	}
	ttl := time.Until(c.ExpiresAt) + retention
	if ttl < retention {
		ttl = retention
	}
	ok, err := s.rdb.SetNX(ctx, s.key(c.CodeHash), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: create code: %w", err)
	}
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

func decode(hash string, raw []byte) (*repository.AuthorizationCode, error) {
	var rec codeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redis: decode code: %w", err)
	}
	return &repository.AuthorizationCode{
		CodeHash: hash, ClientID: rec.ClientID, UserID: rec.UserID, Scope: rec.Scope,
		RedirectURI: rec.RedirectURI, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt, ConsumedAt: rec.ConsumedAt,
	}, nil
}

func (s *CodeStore) Consume(ctx context.Context, in repository.ConsumeInput) (*repository.AuthorizationCode, error) {
	key := s.key(in.CodeHash)
	var out *repository.AuthorizationCode

	err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		code, err := decode(in.CodeHash, raw)
		if err != nil {
			return err
		}
		if code.ConsumedAt != nil ||
			code.ClientID != in.ClientID ||
			code.RedirectURI != in.RedirectURI ||
			!in.Now.Before(code.ExpiresAt) {
			return repository.ErrNotFound
		}

		now := in.Now
		code.ConsumedAt = &now
		b, err := json.Marshal(codeRecord{
			ClientID: code.ClientID, UserID: code.UserID, Scope: code.Scope, RedirectURI: code.RedirectURI,
			CreatedAt: code.CreatedAt, ExpiresAt: code.ExpiresAt, ConsumedAt: code.ConsumedAt,
		})
		if err != nil {
			return fmt.Errorf("redis: encode code: %w", err)
		}
		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = retention
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, key, b, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = code
		return nil
	}, key)

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, goredis.TxFailedErr):
		// TxFailedErr: otro canje tocó la key primero.
		return nil, repository.ErrNotFound
	default:
		return nil, fmt.Errorf("redis: consume code: %w", err)
	}
}

// DeleteExpired borra codes consumidos o vencidos. Los que nadie toca
// igual desaparecen por TTL.
func (s *CodeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	iter := s.rdb.Scan(ctx, 0, s.prefix+"code:*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("redis: sweep get: %w", err)
		}
		var rec codeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if rec.ConsumedAt == nil && now.Before(rec.ExpiresAt) {
			continue
		}
		n, err := s.rdb.Del(ctx, key).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis: sweep del: %w", err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis: sweep scan: %w", err)
	}
	return deleted, nil
}
