package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clinicauth/internal/app"
)

func newSessionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Sesiones de usuario para /authorize"}

	var userID int64
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Firma un token de sesión (Bearer o cookie) para un usuario existente",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id es requerido")
			}
			a, err := app.New(cmd.Context(), c.cfg, app.Options{SkipMigrate: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Store.Users().GetByID(cmd.Context(), userID); err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}
			tok, err := a.Sessions.IssueSessionToken(userID, ttl)
			if err != nil {
				return err
			}
			out := struct {
				Token     string `json:"token"`
				ExpiresIn int64  `json:"expires_in"`
			}{tok, int64(ttl / time.Second)}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) { fmt.Fprintln(w, tok) })
		},
	}
	issue.Flags().Int64Var(&userID, "user-id", 0, "ID del usuario")
	issue.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "Vigencia de la sesión")

	cmd.AddCommand(issue)
	return cmd
}
