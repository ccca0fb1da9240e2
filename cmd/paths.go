package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/SayWess/Musicarr/internal/models"
)

func pathsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "paths",
		Usage: "Manage storage root folders",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List root folders",
				Action: r.PathsList,
			},
			{
				Name:      "add",
				Usage:     "Add a root folder (the first one becomes the default)",
				ArgsUsage: "<path>",
				Action:    r.PathsAdd,
			},
			{
				Name:      "default",
				Usage:     "Make a root folder the default",
				ArgsUsage: "<path>",
				Action:    r.PathsDefault,
			},
			{
				Name:      "rm",
				Usage:     "Remove a root folder",
				ArgsUsage: "<path>",
				Action:    r.PathsRemove,
			},
		},
	}
}

// PathsList prints the configured root folders, default first.
func (r *Runner) PathsList(ctx context.Context, cmd *cli.Command) error {
	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	folders, err := app.repos.Roots.List()
	if err != nil {
		return err
	}
	for _, f := range folders {
		marker := " "
		if f.IsDefault {
			marker = "*"
		}
		r.writePlain("%s %s\n", marker, f.Path)
	}
	return nil
}

// PathsAdd registers a new root folder.
func (r *Runner) PathsAdd(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, 0, "path")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	folder := &models.RootFolder{Path: path}
	if err := app.repos.Roots.Create(folder); err != nil {
		return err
	}
	r.writePlain("✓ added %s\n", folder.Path)
	return nil
}

// PathsDefault makes the folder at path the default root.
func (r *Runner) PathsDefault(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, 0, "path")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	folder, err := app.repos.Roots.GetByPath(path)
	if err != nil {
		return err
	}
	if err := app.repos.Roots.SetDefault(folder.ID); err != nil {
		return err
	}
	r.writePlain("✓ default is now %s\n", folder.Path)
	return nil
}

// PathsRemove deletes a root folder.
func (r *Runner) PathsRemove(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, 0, "path")
	if err != nil {
		return err
	}

	app, err := r.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	folder, err := app.repos.Roots.GetByPath(path)
	if err != nil {
		return err
	}
	if err := app.repos.Roots.Delete(folder.ID); err != nil {
		return err
	}
	r.writePlain("✓ removed %s\n", folder.Path)
	return nil
}
