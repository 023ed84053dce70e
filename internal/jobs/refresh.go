// SPDX-License-Identifier: MIT

// Package jobs runs the generation pipeline: resolve the configured bouquet,
// list its channels, fetch each channel's programme schedule and write the
// XMLTV and M3U artifacts.
package jobs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/4n4n4s/enigma2jellyfin/internal/config"
	"github.com/4n4n4s/enigma2jellyfin/internal/epg"
	xglog "github.com/4n4n4s/enigma2jellyfin/internal/log"
	"github.com/4n4n4s/enigma2jellyfin/internal/metrics"
	"github.com/4n4n4s/enigma2jellyfin/internal/openwebif"
	"github.com/4n4n4s/enigma2jellyfin/internal/playlist"
	"github.com/4n4n4s/enigma2jellyfin/internal/serviceref"
)

// Client is the part of the OpenWebIf client the pipeline needs.
type Client interface {
	ResolveBouquet(ctx context.Context, name string) (string, error)
	Channels(ctx context.Context, bouquetRef string) ([]openwebif.Service, error)
	EPG(ctx context.Context, channelRef string) ([]openwebif.Event, error)
}

// Channel is one playable lineup entry for a single run. Events is filled
// in by the EPG fetch stage and stays empty when that channel's fetch fails.
type Channel struct {
	Name   string
	Ref    string
	Events []epg.Event
}

// Status describes the outcome of the last completed run.
type Status struct {
	LastRun     time.Time `json:"last_run"`
	Channels    int       `json:"channels"`
	Programmes  int       `json:"programmes"`
	EPGFailures int       `json:"epg_failures"`
}

// Refresh performs one complete generation run against cl using the given
// configuration snapshot. Resolve and list failures abort the run before
// anything is written, so previous artifacts stay untouched; per-channel
// EPG failures are recorded and the run continues.
func Refresh(ctx context.Context, cfg config.Config, cl Client) (*Status, error) {
	logger := xglog.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str("event", "refresh.start").
		Str("bouquet", cfg.Bouquet).
		Msg("starting refresh")

	ref, err := cl.ResolveBouquet(ctx, cfg.Bouquet)
	if err != nil {
		return nil, fmt.Errorf("resolve bouquet %q: %w", cfg.Bouquet, err)
	}

	services, err := cl.Channels(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list channels for bouquet %q: %w", cfg.Bouquet, err)
	}

	channels := make([]Channel, 0, len(services))
	for _, svc := range services {
		channels = append(channels, Channel{Name: svc.Name, Ref: svc.Ref})
	}

	// An empty bouquet is valid: both artifacts are still (re)written.
	epgFailures := collectEvents(ctx, cl, channels)

	guide := make([]epg.ChannelGuide, 0, len(channels))
	items := make([]playlist.Item, 0, len(channels))
	programmes := 0
	streamBase := cfg.StreamBaseURL()
	for _, ch := range channels {
		id := serviceref.DeriveChannelID(ch.Ref)
		guide = append(guide, epg.ChannelGuide{ID: id, Name: ch.Name, Events: ch.Events})
		programmes += len(ch.Events)

		item := playlist.Item{
			ID:        id,
			Name:      ch.Name,
			LogoURL:   openwebif.PiconURL(streamBase, id),
			StreamURL: openwebif.StreamURL(streamBase, ch.Ref),
		}
		item.ProgramID, item.HasProgramID = serviceref.ExtractProgramID(ch.Ref)
		items = append(items, item)
	}

	xmltvPath := cfg.XMLTVPath()
	if err := writeAtomic(ctx, xmltvPath, func(w io.Writer) error {
		return epg.Write(w, guide, cfg.ControlBaseURL())
	}); err != nil {
		return nil, fmt.Errorf("write xmltv: %w", err)
	}
	logger.Info().
		Str("event", "xmltv.write").
		Str("path", xmltvPath).
		Int("channels", len(guide)).
		Int("programmes", programmes).
		Msg("XMLTV written")

	m3uPath := cfg.M3UPath()
	if err := writeAtomic(ctx, m3uPath, func(w io.Writer) error {
		return playlist.WriteM3U(w, items)
	}); err != nil {
		return nil, fmt.Errorf("write playlist: %w", err)
	}
	logger.Info().
		Str("event", "playlist.write").
		Str("path", m3uPath).
		Int("channels", len(items)).
		Msg("playlist written")

	status := &Status{
		LastRun:     time.Now(),
		Channels:    len(channels),
		Programmes:  programmes,
		EPGFailures: epgFailures,
	}
	metrics.RecordRefreshStats(status.Channels, status.Programmes)
	logger.Info().
		Str("event", "refresh.success").
		Int("channels", status.Channels).
		Int("programmes", status.Programmes).
		Int("epg_failures", status.EPGFailures).
		Msg("refresh completed")
	return status, nil
}
