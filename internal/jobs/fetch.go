// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"sync/atomic"

	"github.com/4n4n4s/enigma2jellyfin/internal/epg"
	xglog "github.com/4n4n4s/enigma2jellyfin/internal/log"
	"github.com/4n4n4s/enigma2jellyfin/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// epgConcurrency bounds the EPG fan-out so a large bouquet does not open
// dozens of sockets against the box at once.
const epgConcurrency = 5

// collectEvents fetches the programme schedule for every channel and fills
// Events in place. Channels are independent: one channel's failure is
// logged and counted, the others are unaffected, and the failing channel
// keeps an empty schedule. Returns the number of failed channels.
func collectEvents(ctx context.Context, cl Client, channels []Channel) int {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	var failures atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(epgConcurrency)

	for i := range channels {
		ch := &channels[i]
		g.Go(func() error {
			raw, err := cl.EPG(ctx, ch.Ref)
			if err != nil {
				failures.Add(1)
				metrics.RecordEPGChannelFailure()
				logger.Warn().
					Err(err).
					Str("event", "epg.channel_failed").
					Str("channel", ch.Name).
					Str("ref", ch.Ref).
					Msg("EPG fetch failed, channel keeps empty schedule")
				return nil
			}
			ch.Events = epg.EventsFromDevice(raw)
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes the fan-out.
	_ = g.Wait()

	return int(failures.Load())
}
