package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clinicauth/internal/config"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
)

// cli guarda flags globales y la config cargada en PersistentPreRunE.
type cli struct {
	configPath string
	envFile    string
	out        string

	cfg *config.Config
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "clinicauth",
		Short:         "Servidor OAuth2 (authorization code) de la clínica",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", envOr("CLINICAUTH_CONFIG", "config.yaml"), "Archivo YAML de config (env CLINICAUTH_CONFIG)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Archivo .env opcional")
	root.PersistentFlags().StringVar(&c.out, "out", "text", "Formato de salida: json|text")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newClientCmd(c),
		newUserCmd(c),
		newSessionCmd(c),
		newKeygenCmd(c),
		newSweepCmd(c),
	)
	return root
}

// load lee .env (si existe), la config y arranca el logger.
func (c *cli) load() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file %s: %w", c.envFile, err)
		}
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Service: cfg.App.Name})
	return nil
}

// print escribe v como JSON indentado o con el formateador de texto.
func (c *cli) print(w io.Writer, v any, text func(io.Writer)) error {
	if c.out == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
