// Package app wires the fetch, adapt and resolve stages into the one
// pipeline the HTTP API and the CLI both run.
package app

import (
	"context"
	"fmt"
	"time"

	"icsday/internal/config"
	"icsday/internal/daykey"
	"icsday/internal/ics"
	appLog "icsday/internal/log"
	"icsday/internal/model"
	"icsday/internal/resolve"
)

// App holds the long-lived pieces of the pipeline.
type App struct {
	cfg      *config.Config
	fetcher  *ics.Fetcher
	location *time.Location
}

// New builds an App from configuration. An unresolvable configured timezone
// degrades to UTC with a warning log, keeping startup alive.
func New(cfg *config.Config) *App {
	loc, err := ics.ResolveLocation(cfg.Timezone)
	if err != nil {
		appLog.Warn("configured timezone not resolvable, using UTC", "timezone", cfg.Timezone, "err", err)
		loc = time.UTC
	}
	return &App{
		cfg:      cfg,
		fetcher:  ics.NewFetcher(cfg.CacheDir, 0),
		location: loc,
	}
}

// Location is the explicit observer timezone from configuration.
func (a *App) Location() *time.Location { return a.location }

// Sources lists the configured ICS sources with identifiers filled in.
func (a *App) Sources() []ics.Source {
	sources := make([]ics.Source, 0, len(a.cfg.Sources))
	for _, sc := range a.cfg.Sources {
		if sc.URL == "" {
			continue
		}
		id := sc.ID
		if id == "" {
			if sc.Name != "" {
				id = sc.Name
			} else {
				id = sc.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, Name: sc.Name, URL: sc.URL})
	}
	return sources
}

// Options derives resolver options from configuration, with per-call
// overrides applied by the caller.
func (a *App) Options() resolve.Options {
	return resolve.Options{
		IncludeOngoing:     a.cfg.IncludeOngoing,
		IncludeTransparent: a.cfg.IncludeTransparent,
		OwnerEmail:         a.cfg.OwnerEmail,
		DefaultLocation:    a.location,
	}
}

// ResolveDays runs the full pipeline for the given target days: fetch every
// configured source, adapt each document, resolve occurrences. Per-source
// fetch and parse failures become warnings; the rest of the batch still
// resolves.
func (a *App) ResolveDays(ctx context.Context, days []daykey.Day, opts resolve.Options) resolve.Result {
	var warnings []model.Warning

	sources := a.Sources()
	fetchResults, fetchErrs := a.fetcher.FetchAll(ctx, sources)
	for _, err := range fetchErrs {
		warnings = append(warnings, model.Warning{Message: fmt.Sprintf("fetch: %v", err)})
	}

	adaptOpts := ics.AdaptOptions{DefaultLocation: a.location}
	events := make([]model.Event, 0)
	for _, res := range fetchResults {
		evs, warns, err := ics.Adapt(res.Source, res.Body, adaptOpts)
		warnings = append(warnings, warns...)
		if err != nil {
			appLog.Error("adapt failed for source", err, "calendar", res.Source.ID)
			warnings = append(warnings, model.Warning{
				Calendar: res.Source.ID,
				Message:  err.Error(),
			})
			continue
		}
		events = append(events, evs...)
	}

	result := resolve.Resolve(events, days, opts)
	result.Warnings = append(warnings, result.Warnings...)
	return result
}

// Refresh pre-warms the fetch caches for all configured sources. The serve
// command runs this on its cron schedule.
func (a *App) Refresh(ctx context.Context) {
	sources := a.Sources()
	_, errs := a.fetcher.FetchAll(ctx, sources)
	appLog.Info("refresh completed", "sources", len(sources), "errors", len(errs))
}
