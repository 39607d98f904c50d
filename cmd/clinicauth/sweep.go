package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clinicauth/internal/app"
)

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Borra una vez codes y tokens vencidos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), c.cfg, app.Options{SkipMigrate: true})
			if err != nil {
				return err
			}
			defer a.Close()

			codes, tokens, err := a.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]int64{"codes": codes, "tokens": tokens}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "deleted %d codes, %d tokens\n", codes, tokens)
			})
		},
	}
}
