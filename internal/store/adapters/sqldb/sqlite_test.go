package sqldb_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clinicauth/internal/store"
	_ "github.com/dropDatabas3/clinicauth/internal/store/adapters/sqldb"
	"github.com/dropDatabas3/clinicauth/internal/store/storetest"
)

func openMigrated(t *testing.T, name, dsn string) store.AdapterConnection {
	t.Helper()
	ctx := context.Background()
	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{Name: name, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	res, err := store.Migrate(ctx, conn)
	require.NoError(t, err)
	require.NotNil(t, res)
	return conn
}

func TestAdaptersRegistered(t *testing.T) {
	for _, name := range []string{"mysql", "sqlite"} {
		a, ok := store.GetAdapter(name)
		require.True(t, ok, name)
		require.Equal(t, name, a.Name())
	}
}

func TestConnectRequiresDSN(t *testing.T) {
	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "mysql"})
	require.Error(t, err)
}

func TestSQLiteMigrateIdempotent(t *testing.T) {
	conn := openMigrated(t, "sqlite", ":memory:")
	res, err := store.Migrate(context.Background(), conn)
	require.NoError(t, err)
	require.Empty(t, res.Applied)
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.AdapterConnection {
		return openMigrated(t, "sqlite", ":memory:")
	})
}

// Requiere un MySQL real: MYSQL_TEST_DSN=user:pass@tcp(localhost:3306)/clinicauth_test
func TestMySQLConformance(t *testing.T) {
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.AdapterConnection {
		conn := openMigrated(t, "mysql", dsn)
		db, err := sql.Open("mysql", dsn)
		require.NoError(t, err)
		defer db.Close()
		for _, table := range []string{"oauth_token", "authorization_code", "oauth_client", "app_user"} {
			_, err := db.Exec("DELETE FROM " + table)
			require.NoError(t, err)
		}
		return conn
	})
}
