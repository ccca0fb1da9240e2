package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/SayWess/Musicarr/internal/formatter"
	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
)

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Manage tracked playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List tracked playlists with their download counts",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output as JSON"}},
				Action: r.PlaylistsList,
			},
			{
				Name:      "add",
				Usage:     "Track a playlist by its external id and fetch its metadata",
				ArgsUsage: "<source_id>",
				Action:    r.PlaylistsAdd,
			},
			{
				Name:      "refresh",
				Usage:     "Reconcile a playlist's metadata with upstream",
				ArgsUsage: "<source_id>",
				Action:    r.PlaylistsRefresh,
			},
			{
				Name:      "download",
				Usage:     "Download a playlist's pending videos",
				ArgsUsage: "<source_id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "all", Usage: "Redownload already-downloaded videos too"}},
				Action:    r.PlaylistsDownload,
			},
			{
				Name:      "rm",
				Usage:     "Stop tracking a playlist",
				ArgsUsage: "<source_id>",
				Action:    r.PlaylistsRemove,
			},
			{
				Name:      "tracklist",
				Usage:     "Write a playlist's tracklist to a file",
				ArgsUsage: "<source_id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown or text", Value: "text"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file path"},
				},
				Action: r.PlaylistsTracklist,
			},
			{
				Name:      "set",
				Usage:     "Update one playlist setting, e.g. set PL123 default_format VIDEO",
				ArgsUsage: "<source_id> <field> <value>",
				Action:    r.PlaylistsSet,
			},
		},
	}
}

// requireArg returns the nth positional argument or ErrMissingArgument.
func requireArg(cmd *cli.Command, n int, name string) (string, error) {
	value := cmd.Args().Get(n)
	if value == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return value, nil
}

// PlaylistsList prints the tracked playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	playlists, err := app.repos.Playlists.List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}

	for _, p := range playlists {
		counts, err := app.repos.Playlists.Counts(p.ID)
		if err != nil {
			return err
		}
		r.writePlain("%s  %s (%d/%d downloaded)\n", p.SourceID, p.Title, counts.Downloaded, counts.Total)
	}
	return nil
}

// PlaylistsAdd registers a playlist and runs its first reconciliation.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := requireArg(cmd, 0, "source_id")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	playlist, err := app.engine.AddPlaylist(ctx, sourceID)
	if err != nil {
		return err
	}
	r.writePlain("✓ tracking %q (%s)\n", playlist.Title, playlist.SourceID)
	return nil
}

// PlaylistsRefresh reconciles one playlist's metadata.
func (r *Runner) PlaylistsRefresh(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := requireArg(cmd, 0, "source_id")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	playlist, err := app.repos.Playlists.GetBySourceID(sourceID)
	if err != nil {
		return err
	}
	if err := app.engine.RefreshPlaylist(ctx, playlist.ID); err != nil {
		return err
	}
	r.writePlain("✓ refreshed %q\n", playlist.Title)
	return nil
}

// PlaylistsDownload downloads a playlist's pending videos.
func (r *Runner) PlaylistsDownload(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := requireArg(cmd, 0, "source_id")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	playlist, err := app.repos.Playlists.GetBySourceID(sourceID)
	if err != nil {
		return err
	}

	summary, err := app.engine.DownloadPlaylist(ctx, playlist.ID, cmd.Bool("all"))
	if err != nil {
		return err
	}
	if summary.UpToDate {
		r.writePlain("already up to date\n")
		return nil
	}
	r.writePlain("downloaded %d/%d", summary.Total-summary.Failed-summary.Unavailable, summary.Total)
	if summary.Failed > 0 {
		r.writePlain(", %d failed", summary.Failed)
	}
	if summary.Unavailable > 0 {
		r.writePlain(", %d unavailable", summary.Unavailable)
	}
	r.writePlain("\n")
	return nil
}

// PlaylistsRemove deletes a playlist and its orphaned videos.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := requireArg(cmd, 0, "source_id")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	playlist, err := app.repos.Playlists.GetBySourceID(sourceID)
	if err != nil {
		return err
	}
	if err := app.repos.Playlists.Delete(playlist.ID); err != nil {
		return err
	}
	if _, err := app.repos.Videos.DeleteOrphans(); err != nil {
		return err
	}
	r.writePlain("✓ removed %q\n", playlist.Title)
	return nil
}

// PlaylistsTracklist renders a playlist's members to a tracklist file.
func (r *Runner) PlaylistsTracklist(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := requireArg(cmd, 0, "source_id")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	playlist, err := app.repos.Playlists.GetBySourceID(sourceID)
	if err != nil {
		return err
	}
	memberships, err := app.repos.Memberships.ListByPlaylist(playlist.ID)
	if err != nil {
		return err
	}

	videos := make([]*models.Video, 0, len(memberships))
	for _, pv := range memberships {
		video, err := app.repos.Videos.Get(pv.VideoID)
		if err != nil {
			return err
		}
		videos = append(videos, video)
	}

	path, err := formatter.WriteTracklist(playlist, videos, cmd.String("format"), cmd.String("out"))
	if err != nil {
		return err
	}
	r.writePlain("✓ wrote %s\n", path)
	return nil
}

// PlaylistsSet updates one policy field on a playlist.
func (r *Runner) PlaylistsSet(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := requireArg(cmd, 0, "source_id")
	if err != nil {
		return err
	}
	field, err := requireArg(cmd, 1, "field")
	if err != nil {
		return err
	}
	value, err := requireArg(cmd, 2, "value")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	playlist, err := app.repos.Playlists.GetBySourceID(sourceID)
	if err != nil {
		return err
	}

	// Booleans arrive as the strings "true"/"false" on the command line.
	var parsed any = value
	switch value {
	case "true":
		parsed = true
	case "false":
		parsed = false
	}

	if err := app.engine.UpdatePlaylistSettings(playlist.ID, map[string]any{field: parsed}); err != nil {
		return err
	}
	r.writePlain("✓ %s = %s\n", field, value)
	return nil
}
