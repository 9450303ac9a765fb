package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/readdon/internal/formatter"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/services"
	"github.com/desertthunder/readdon/internal/shared"
	"github.com/urfave/cli/v3"
)

// AddonsList prints the desired addon list.
func (r *Runner) AddonsList(ctx context.Context, cmd *cli.Command) error {
	file := r.desiredFile(cmd)
	desired, err := file.Load()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(desired.Descriptors(), true)
	}

	r.writePlainHeader(fmt.Sprintf("Desired addons (%d) from %s", desired.Len(), file.Path()))
	_, err = r.output.Write(formatter.AddonsToText(desired.Descriptors()))
	return err
}

// AddonsAdd resolves a manifest URL and adds or replaces the addon in the desired list.
func (r *Runner) AddonsAdd(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("url")
	if raw == "" {
		return fmt.Errorf("%w: addon url", shared.ErrMissingArgument)
	}
	url, err := services.NormalizeURL(raw)
	if err != nil {
		return err
	}

	file := r.desiredFile(cmd)
	desired, err := r.loadOrEmpty(file.Exists(), file.Load)
	if err != nil {
		return err
	}

	addon, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}

	replaced := desired.Has(addon.Key())
	if desired, err = desired.With(*addon); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidManifest, err)
	}
	if err := file.Save(desired); err != nil {
		return err
	}

	verb := "Added"
	if replaced {
		verb = "Replaced"
	}
	r.logger.Info("desired addon list saved", "path", file.Path(), "addons", desired.Len())
	return r.writePlain("%s %s (%s)\n", verb, addon.DisplayName(), addon.Key())
}

// AddonsRemove drops an addon from the desired list by manifest ID.
func (r *Runner) AddonsRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: addon id", shared.ErrMissingArgument)
	}

	file := r.desiredFile(cmd)
	desired, err := file.Load()
	if err != nil {
		return err
	}

	next, ok := desired.Without(id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrAddonNotFound, id)
	}
	if err := file.Save(next); err != nil {
		return err
	}
	return r.writePlain("Removed %s\n", id)
}

// AddonsPrompt edits the desired list interactively, starting from the saved entries.
func (r *Runner) AddonsPrompt(ctx context.Context, cmd *cli.Command) error {
	file := r.desiredFile(cmd)
	desired, err := r.loadOrEmpty(file.Exists(), file.Load)
	if err != nil {
		return err
	}

	addons, err := r.prompt(ctx, r.fetcher, desired.Descriptors())
	if err != nil {
		return err
	}

	next, err := models.NewDesiredState(addons...)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidManifest, err)
	}
	if err := file.Save(next); err != nil {
		return err
	}
	return r.writePlain("Saved %d addons to %s\n", next.Len(), file.Path())
}

// AddonsRefresh re-fetches every desired manifest. Nothing is written unless every fetch succeeds.
func (r *Runner) AddonsRefresh(ctx context.Context, cmd *cli.Command) error {
	file := r.desiredFile(cmd)
	desired, err := file.Load()
	if err != nil {
		return err
	}

	current := desired.Descriptors()
	refreshed := make([]models.AddonDescriptor, 0, len(current))
	for _, d := range current {
		addon, err := r.fetcher.Fetch(ctx, d.TransportURL)
		if err != nil {
			return fmt.Errorf("refreshing %s: %w", d.Key(), err)
		}
		if addon.Key() != d.Key() {
			r.logger.Warn("manifest id changed", "url", d.TransportURL, "was", d.Key(), "now", addon.Key())
		}
		refreshed = append(refreshed, *addon)
	}

	next, err := models.NewDesiredState(refreshed...)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidManifest, err)
	}
	if err := file.Save(next); err != nil {
		return err
	}
	return r.writePlain("Refreshed %d addons\n", next.Len())
}

func (r *Runner) loadOrEmpty(exists bool, load func() (*models.DesiredState, error)) (*models.DesiredState, error) {
	if !exists {
		return models.NewDesiredState()
	}
	return load()
}
