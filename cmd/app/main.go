package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/karta-graph/karta/internal"
	pkgconfig "github.com/karta-graph/karta/pkg/config"
)

// loadConfig layers the optional YAML file and CLI overrides on top of
// the defaults. An explicitly passed --config must exist; the default
// location is allowed to be absent.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")

	var err error
	if cmd.IsSet("config") {
		err = pkgconfig.Load(configPath, cfg)
	} else {
		err = pkgconfig.LoadIfPresent(configPath, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if vault := cmd.String("vault"); vault != "" {
		cfg.Vault.Path = vault
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// commonFlags returns fresh flag instances; the root command and the
// mcp subcommand must not share them.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("KARTA_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "vault",
			Usage:   "Vault directory the graph is anchored to (overrides config)",
			Sources: cli.EnvVars("KARTA_VAULT"),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "karta",
		Usage:  "Graph server that maps a directory tree onto a navigable node graph with contexts, undo history, and live events",
		Action: runServe,
		Flags:  commonFlags(),
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve Karta tools to LLM clients over MCP stdio",
				Action: runMCP,
				Flags:  commonFlags(),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
