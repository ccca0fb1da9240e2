package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func videosCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "videos",
		Usage: "Manage standalone videos and search",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Register a single video under the reserved playlist",
				ArgsUsage: "<source_id>",
				Action:    r.VideosAdd,
			},
			{
				Name:      "find",
				Usage:     "Search the local library by title",
				ArgsUsage: "<query>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output as JSON"}},
				Action:    r.VideosFind,
			},
			{
				Name:      "search",
				Usage:     "Search upstream for videos",
				ArgsUsage: "<query>",
				Action:    r.VideosSearch,
			},
		},
	}
}

// VideosAdd registers a standalone video.
func (r *Runner) VideosAdd(ctx context.Context, cmd *cli.Command) error {
	sourceID, err := requireArg(cmd, 0, "source_id")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	video, err := app.engine.AddVideo(ctx, sourceID)
	if err != nil {
		return err
	}
	r.writePlain("✓ added %q (%s)\n", video.Title, video.SourceID)
	return nil
}

// VideosFind searches the local library by title.
func (r *Runner) VideosFind(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, 0, "query")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	videos, err := app.repos.Videos.Search(query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(videos, true)
	}
	for _, v := range videos {
		r.writePlain("%s  %s (%s)\n", v.SourceID, v.Title, v.Duration)
	}
	return nil
}

// VideosSearch queries upstream for videos.
func (r *Runner) VideosSearch(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, 0, "query")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.source.Search(ctx, query)
	if err != nil {
		return err
	}
	for _, hit := range results {
		r.writePlain("%s  %s • %s\n", hit.VideoID, hit.Title, hit.ChannelTitle)
	}
	return nil
}
