package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clinicauth/internal/store"
	_ "github.com/dropDatabas3/clinicauth/internal/store/adapters/dal"
)

func (c *cli) openStore(cmd *cobra.Command) (store.AdapterConnection, *store.Guard, error) {
	cfg := c.cfg
	conn, err := store.OpenAdapter(cmd.Context(), store.AdapterConfig{
		Name:         cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
		MaxIdleConns: cfg.Storage.MaxIdleConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return conn, store.NewGuard(conn, store.GuardConfig{Timeout: cfg.Storage.Timeout, ReadTries: cfg.Storage.ReadRetries}), nil
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL pendientes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, _, err := c.openStore(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			res, err := store.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				if len(res.Applied) == 0 {
					fmt.Fprintln(w, "nothing to apply")
					return
				}
				for _, v := range res.Applied {
					fmt.Fprintf(w, "applied %05d\n", v)
				}
			})
		},
	}
}
