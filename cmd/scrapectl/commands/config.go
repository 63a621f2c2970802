package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/joseph-ayodele/scrape-jobs/internal/client"
)

// ConfigShowAction prints the effective configuration as TOML.
func ConfigShowAction(_ context.Context, cmd *cli.Command) error {
	a, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	b, err := toml.Marshal(a.Config)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "# %s\n%s", a.ConfigPath, b)
	return nil
}

// ConfigSetAction updates one key in the config file.
func ConfigSetAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return cli.Exit("usage: scrapectl config set <key> <value>", exitUsage)
	}
	key, value := cmd.Args().Get(0), cmd.Args().Get(1)

	a, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	// reload without the --url override so it isn't persisted by accident
	cfg, err := client.LoadConfig(a.ConfigPath)
	if err != nil {
		return err
	}
	if err := setConfigValue(cfg, key, value); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if err := client.SaveConfig(a.ConfigPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "✓ %s = %s\n", key, value)
	return nil
}

func setConfigValue(cfg *client.Config, key, value string) error {
	if key == "base_url" {
		if value == "" {
			return fmt.Errorf("base_url cannot be empty")
		}
		cfg.BaseURL = value
		return nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s must be a positive integer", key)
	}
	switch key {
	case "timeout_seconds":
		cfg.TimeoutSeconds = n
	case "reconcile_after_seconds":
		cfg.ReconcileAfterSeconds = n
	case "default_max_results":
		cfg.DefaultMaxResults = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
