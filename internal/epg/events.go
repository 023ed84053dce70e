// SPDX-License-Identifier: MIT

package epg

import (
	"strconv"
	"strings"
	"time"

	"github.com/4n4n4s/enigma2jellyfin/internal/openwebif"
	"golang.org/x/text/unicode/norm"
)

// Event is one retained programme entry. End is always after Start; entries
// that cannot satisfy that are dropped during conversion, never kept as
// zero-length placeholders.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// EventsFromDevice converts raw box events into Events. Start is an epoch
// second, duration a second count; both must parse as integers and the
// duration must be positive, otherwise the entry is silently skipped — bad
// single events are routine upstream noise, not an error. Source order is
// preserved.
func EventsFromDevice(raw []openwebif.Event) []Event {
	events := make([]Event, 0, len(raw))
	for _, ev := range raw {
		begin, err := strconv.ParseInt(strings.TrimSpace(ev.Start), 10, 64)
		if err != nil {
			continue
		}
		duration, err := strconv.ParseInt(strings.TrimSpace(ev.Duration), 10, 64)
		if err != nil || duration <= 0 {
			continue
		}

		start := time.Unix(begin, 0).UTC()
		events = append(events, Event{
			Title:       norm.NFC.String(ev.Title),
			Description: norm.NFC.String(ev.Description),
			Start:       start,
			End:         start.Add(time.Duration(duration) * time.Second),
		})
	}
	return events
}
