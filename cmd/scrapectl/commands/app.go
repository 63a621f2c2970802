package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/joseph-ayodele/scrape-jobs/internal/client"
	"github.com/joseph-ayodele/scrape-jobs/internal/synchronizer"
)

// appContext bundles what every subcommand needs.
type appContext struct {
	Config     *client.Config
	ConfigPath string
	Client     *client.Client
	Logger     *slog.Logger
	Out        io.Writer
}

func newAppContext(cmd *cli.Command) (*appContext, error) {
	path := cmd.String("config")
	if path == "" {
		p, err := client.ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := client.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if u := cmd.String("url"); u != "" {
		cfg.BaseURL = u
	}

	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var out io.Writer = os.Stdout
	if w := cmd.Root().Writer; w != nil {
		out = w
	}
	return &appContext{
		Config:     cfg,
		ConfigPath: path,
		Client:     client.NewClient(cfg.BaseURL, cfg.Timeout()),
		Logger:     logger,
		Out:        out,
	}, nil
}

func (a *appContext) runner() *synchronizer.Runner {
	return synchronizer.NewRunner(synchronizer.FromClient(a.Client), a.Logger,
		synchronizer.WithReconcileAfter(a.Config.ReconcileAfter()))
}

func jobIDArg(cmd *cli.Command) (uuid.UUID, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return uuid.Nil, cli.Exit("job id is required", exitUsage)
	}
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, cli.Exit(fmt.Sprintf("invalid job id %q", arg), exitUsage)
	}
	return id, nil
}

const (
	exitFailed    = 1
	exitUsage     = 2
	exitNotFound  = 3
	exitTransport = 4
)

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	var coder cli.ExitCoder
	switch {
	case errors.As(err, &coder):
		return coder.ExitCode()
	case client.IsNotFound(err):
		return exitNotFound
	case client.IsTransport(err):
		return exitTransport
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Validation() {
		return exitUsage
	}
	return exitFailed
}

// RenderError formats err for the terminal, listing field errors when present.
func RenderError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		msg := "Error: " + apiErr.Message
		for _, f := range apiErr.Fields {
			msg += fmt.Sprintf("\n  %s: %s", f.Field, f.Message)
		}
		return msg
	}
	if client.IsTransport(err) {
		return fmt.Sprintf("Error: cannot reach the scraping service (%v)", err)
	}
	return "Error: " + err.Error()
}
