package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// Field permite armar listas de campos sin importar zap.
type Field = zap.Field

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Bytes(v int) zap.Field              { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ─── OAuth ───

// ClientID identifica al cliente OAuth (dato público).
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// UserID identifica al usuario autenticado.
func UserID(v int64) zap.Field { return zap.Int64("user_id", v) }

// GrantType es el grant_type del token endpoint.
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }

// Scope es el scope solicitado o concedido.
func Scope(v string) zap.Field { return zap.String("scope", v) }

// Fingerprint loguea los primeros 8 caracteres hex del sha256 de un valor
// sensible (code, token). Permite correlacionar sin exponerlo.
func Fingerprint(key, secret string) zap.Field {
	sum := sha256.Sum256([]byte(secret))
	return zap.String(key, hex.EncodeToString(sum[:])[:8])
}

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

func String(key, v string) zap.Field      { return zap.String(key, v) }
func Int64(key string, v int64) zap.Field { return zap.Int64(key, v) }
func Bool(key string, v bool) zap.Field   { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field     { return zap.Any(key, v) }
