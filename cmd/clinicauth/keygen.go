package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clinicauth/internal/config"
	"github.com/dropDatabas3/clinicauth/internal/security/secretbox"
)

func newKeygenCmd(c *cli) *cobra.Command {
	var write string
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Genera una master key para " + secretbox.EnvVar,
		// No necesita config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			if write != "" {
				if err := config.SetEnvValue(write, secretbox.EnvVar, k, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s written to %s\n", secretbox.EnvVar, write)
				return nil
			}
			out := map[string]string{secretbox.EnvVar: k}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "%s=%s\n", secretbox.EnvVar, k)
			})
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "Guarda la key en este archivo .env en vez de imprimirla")
	cmd.Flags().BoolVar(&force, "force", false, "Reemplaza una key ya presente en --write")
	return cmd
}
