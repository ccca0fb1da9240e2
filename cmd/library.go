package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
)

func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Export and import the tracked playlist configuration",
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Write the library snapshot as JSON to stdout or a file",
				ArgsUsage: "[file]",
				Action:    r.LibraryExport,
			},
			{
				Name:      "import",
				Usage:     "Register the playlists named in a library snapshot",
				ArgsUsage: "<file>",
				Action:    r.LibraryImport,
			},
		},
	}
}

// LibraryExport writes the library snapshot.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	out := r.output
	if path := cmd.Args().First(); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return app.engine.ExportLibrary(out)
}

// LibraryImport registers playlists from a snapshot file. The imported
// playlists carry their saved policies and are reconciled on the next
// refresh.
func (r *Runner) LibraryImport(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, 0, "file")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := app.engine.ImportLibrary(ctx, f)
	if err != nil {
		return err
	}
	r.writePlain("✓ imported %d playlists, %d already tracked\n", result.Imported, result.Skipped)
	return nil
}
