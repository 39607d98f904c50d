package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
)

func newUserCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Alta y listado de usuarios"}

	var username, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Crea un usuario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return fmt.Errorf("--username es requerido")
			}
			conn, g, err := c.openStore(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			u, err := g.Users().Create(cmd.Context(), username, role)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), u, func(w io.Writer) {
				fmt.Fprintf(w, "user %d created (%s, %s)\n", u.ID, u.Username, u.Role)
			})
		},
	}
	create.Flags().StringVar(&username, "username", "", "Nombre de usuario (único)")
	create.Flags().StringVar(&role, "role", repository.DefaultRole, "Rol")

	list := &cobra.Command{
		Use:   "list",
		Short: "Lista usuarios",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, g, err := c.openStore(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			users, err := g.Users().List(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), users, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSERNAME\tROLE")
				for _, u := range users {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Username, u.Role)
				}
				_ = tw.Flush()
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
