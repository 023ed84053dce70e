// SPDX-License-Identifier: MIT

// Package epg builds XMLTV electronic programme guide documents from
// OpenWebIf lineup and schedule data.
package epg

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/4n4n4s/enigma2jellyfin/internal/openwebif"
)

const generatorName = "enigma2jellyfin"

// xmltvTimeLayout is the XMLTV timestamp shape. Timestamps are always
// rendered in UTC, so the offset token is a fixed "+0000".
const xmltvTimeLayout = "20060102150405 -0700"

// TV is the XMLTV document root.
type TV struct {
	XMLName   xml.Name    `xml:"tv"`
	Generator string      `xml:"generator-info-name,attr,omitempty"`
	Channels  []Channel   `xml:"channel"`
	Programs  []Programme `xml:"programme"`
}

// Channel is one XMLTV channel block.
type Channel struct {
	ID          string `xml:"id,attr"`
	DisplayName string `xml:"display-name"`
	Icon        *Icon  `xml:"icon,omitempty"`
}

// Icon carries the channel logo URL.
type Icon struct {
	Src string `xml:"src,attr"`
}

// Programme is one XMLTV programme block, joined to its channel by ID.
type Programme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   Text   `xml:"title"`
	Desc    Text   `xml:"desc"`
}

// Text is a language-tagged character data element.
type Text struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// ChannelGuide pairs one lineup entry with its retained programme events
// for serialization.
type ChannelGuide struct {
	ID     string
	Name   string
	Events []Event
}

// BuildTV assembles the XMLTV document for a channel list. piconBase is the
// base URL icon links are derived from.
func BuildTV(channels []ChannelGuide, piconBase string) *TV {
	tv := &TV{
		Generator: generatorName,
		Channels:  make([]Channel, 0, len(channels)),
		Programs:  []Programme{},
	}
	for _, ch := range channels {
		tv.Channels = append(tv.Channels, Channel{
			ID:          ch.ID,
			DisplayName: ch.Name,
			Icon:        &Icon{Src: openwebif.PiconURL(piconBase, ch.ID)},
		})
		for _, ev := range ch.Events {
			tv.Programs = append(tv.Programs, Programme{
				Start:   formatXMLTVTime(ev.Start),
				Stop:    formatXMLTVTime(ev.End),
				Channel: ch.ID,
				Title:   Text{Lang: "en", Value: ev.Title},
				Desc:    Text{Lang: "en", Value: ev.Description},
			})
		}
	}
	return tv
}

// Write serializes the XMLTV document for channels to w.
func Write(w io.Writer, channels []ChannelGuide, piconBase string) error {
	out, err := xml.MarshalIndent(BuildTV(channels, piconBase), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal xmltv: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Parse decodes an XMLTV document, e.g. one produced by Write.
func Parse(r io.Reader) (*TV, error) {
	var doc TV
	dec := xml.NewDecoder(r)
	dec.Entity = make(map[string]string)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode xmltv: %w", err)
	}
	return &doc, nil
}

func formatXMLTVTime(t time.Time) string {
	return t.UTC().Format(xmltvTimeLayout)
}
