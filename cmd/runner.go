package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/repositories"
	"github.com/desertthunder/spotremote/internal/services"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The credential store and services are built on first use so commands like `setup config`
// work without credentials or a reachable store.
type Runner struct {
	config      *shared.Config
	configPath  string
	store       models.CredentialStore
	tokens      *services.TokenManager
	dispatcher  *services.Dispatcher
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Store       models.CredentialStore
	Tokens      *services.TokenManager
	Dispatcher  *services.Dispatcher
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		store:       opts.Store,
		tokens:      opts.Tokens,
		dispatcher:  opts.Dispatcher,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, loginCommand, logoutCommand, sessionsCommand, statusCommand, controlCommand, trackCommand, remoteCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config file named by --config (when it exists), applies environment
// overrides and sets the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	r.config.ApplyEnv()

	level := r.config.Log.Level
	if v := cmd.String("log-level"); v != "" {
		level = v
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return ctx, nil
}

// SetLogger replaces the logger used by the runner and by services built after the call.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// services returns the token manager and dispatcher, opening the configured store on first use.
func (r *Runner) services(ctx context.Context) (*services.TokenManager, *services.Dispatcher, error) {
	if r.tokens != nil && r.dispatcher != nil {
		return r.tokens, r.dispatcher, nil
	}

	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}

	if r.store == nil {
		store, err := repositories.Open(ctx, r.config, r.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		r.store = store
	}

	tokens, dispatcher, err := services.New(r.config, r.store, r.logger)
	if err != nil {
		return nil, nil, err
	}
	r.tokens, r.dispatcher = tokens, dispatcher
	return tokens, dispatcher, nil
}

// sessionCredential loads the CLI session's stored credential.
func (r *Runner) sessionCredential(ctx context.Context) (*services.TokenManager, *services.Dispatcher, *models.Credential, error) {
	tokens, dispatcher, err := r.services(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	cred, err := tokens.Credential(ctx, r.config.CLI.SessionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w (run `spotremote login` first)", err)
	}
	return tokens, dispatcher, cred, nil
}

// Close releases the credential store.
func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
