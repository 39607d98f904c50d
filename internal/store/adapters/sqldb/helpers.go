package sqldb

import (
	"database/sql"
	"strings"
	"time"
)

// joinList / splitList: listas separadas por espacio, como las guarda el esquema.
func joinList(v []string) string { return strings.Join(v, " ") }

func splitList(s string) []string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	return f
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
