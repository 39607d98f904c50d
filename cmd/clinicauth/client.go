package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clinicauth/internal/app"
	"github.com/dropDatabas3/clinicauth/internal/audit"
	"github.com/dropDatabas3/clinicauth/internal/oauth"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
	"github.com/dropDatabas3/clinicauth/internal/validation"
)

func newClientCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Alta y listado de clients OAuth"}

	var in oauth.RegisterInput
	var scope string
	create := &cobra.Command{
		Use:   "create",
		Short: "Registra un client; el secreto se muestra una sola vez",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.ClientID == "" {
				return fmt.Errorf("--id es requerido")
			}
			if len(in.RedirectURIs) == 0 {
				return fmt.Errorf("--redirect-uri es requerido")
			}
			in.Scopes = validation.ParseScope(scope)

			a, err := app.New(cmd.Context(), c.cfg, app.Options{SkipMigrate: true})
			if err != nil {
				return err
			}
			defer a.Close()

			cl, secret, err := a.Clients.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			audit.Log(cmd.Context(), audit.EventClientRegistered, logger.ClientID(cl.ClientID),
				logger.Scope(validation.JoinScope(cl.Scopes)))
			out := struct {
				ClientID     string   `json:"client_id"`
				ClientSecret string   `json:"client_secret"`
				RedirectURIs []string `json:"redirect_uris"`
				Scope        string   `json:"scope"`
			}{cl.ClientID, secret, cl.RedirectURIs, validation.JoinScope(cl.Scopes)}
			return c.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "client_id:     %s\nclient_secret: %s\n", out.ClientID, out.ClientSecret)
			})
		},
	}
	create.Flags().StringVar(&in.ClientID, "id", "", "client_id")
	create.Flags().StringVar(&in.Name, "name", "", "Nombre descriptivo")
	create.Flags().StringVar(&in.Secret, "secret", "", "Secreto (vacío = generar)")
	create.Flags().StringArrayVar(&in.RedirectURIs, "redirect-uri", nil, "Redirect URI permitida (repetible)")
	create.Flags().StringVar(&scope, "scope", "", "Scopes permitidos separados por espacio")

	list := &cobra.Command{
		Use:   "list",
		Short: "Lista los clients registrados (sin secretos)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, g, err := c.openStore(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			clients, err := g.Clients().List(cmd.Context())
			if err != nil {
				return err
			}
			type row struct {
				ClientID     string   `json:"client_id"`
				Name         string   `json:"name"`
				RedirectURIs []string `json:"redirect_uris"`
				Scope        string   `json:"scope"`
			}
			rows := make([]row, 0, len(clients))
			for _, cl := range clients {
				rows = append(rows, row{cl.ClientID, cl.Name, cl.RedirectURIs, validation.JoinScope(cl.Scopes)})
			}
			return c.print(cmd.OutOrStdout(), rows, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CLIENT_ID\tNAME\tSCOPE\tREDIRECT_URIS")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ClientID, r.Name, r.Scope, strings.Join(r.RedirectURIs, ","))
				}
				_ = tw.Flush()
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
