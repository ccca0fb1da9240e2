package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/SayWess/Musicarr/internal/download"
	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/repositories"
	"github.com/SayWess/Musicarr/internal/services"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tasks"
	"github.com/SayWess/Musicarr/internal/tracker"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
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

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, playlistsCommand, videosCommand, pathsCommand, libraryCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// app bundles everything a command needs to drive the engine directly.
type app struct {
	db     *sql.DB
	repos  tasks.Repos
	engine *tasks.Engine
	hub    *notify.Hub
	source services.MetadataSource
}

func (a *app) Close() error {
	return a.db.Close()
}

// buildApp opens the database and wires the engine with its dependencies.
// The caller owns the returned app and must Close it.
func (r *Runner) buildApp() (*app, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := tasks.Repos{
		Playlists:   repositories.NewPlaylistRepository(db),
		Videos:      repositories.NewVideoRepository(db),
		Memberships: repositories.NewPlaylistVideoRepository(db),
		Uploaders:   repositories.NewUploaderRepository(db),
		Roots:       repositories.NewRootFolderRepository(db),
	}

	source := services.NewYouTubeService(
		r.config.YouTube.APIKey,
		r.config.YouTube.BaseURL,
		r.config.YouTube.RequestsPerSecond,
	)
	hub := notify.NewHub(r.logger)
	downloads := download.NewService(r.config.Downloads.Binary, download.CommandExecutor{}, hub, r.logger)
	engine := tasks.NewEngine(repos, source, downloads, tracker.New(), hub, r.logger, r.config.AvatarDir())

	return &app{db: db, repos: repos, engine: engine, hub: hub, source: source}, nil
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
