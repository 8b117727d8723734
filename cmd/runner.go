package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodymatch/internal/flow"
	"github.com/desertthunder/melodymatch/internal/services"
	"github.com/desertthunder/melodymatch/internal/session"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/desertthunder/melodymatch/internal/storage"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	backend     services.Backend
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	db          *sql.DB
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Backend     services.Backend
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	DB          *sql.DB            // opened from Config.Database on first use when nil
	OpenBrowser func(string) error // defaults to shared.OpenBrowser
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Backend == nil {
		opts.Backend = services.NewAPIService(opts.Config.Backend.APIURL, opts.HTTPClient)
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		backend:     opts.Backend,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		db:          opts.DB,
		openBrowser: opts.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, authCommand, profileCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// database opens (and migrates) the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	r.db = db
	return db, nil
}

// sessions returns the session manager of the terminal front-end's own origin.
func (r *Runner) sessions() (*session.Manager, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}

	return session.NewManager(session.Options{
		Store:   storage.NewSQLiteStore(db).Scope(r.config.CLI.Origin),
		Backend: r.backend,
		Logger:  shared.WithLogger(r.logger, "origin", r.config.CLI.Origin),
	}), nil
}

func (r *Runner) driver() (*flow.Driver, *session.Manager, error) {
	m, err := r.sessions()
	if err != nil {
		return nil, nil, err
	}
	return flow.NewDriver(m, r.logger), m, nil
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
