// SPDX-License-Identifier: MIT

// Package playlist writes extended M3U playlists.
package playlist

import (
	"bytes"
	"fmt"
	"io"
)

// Item is one playlist entry.
type Item struct {
	ID           string // derived channel ID, used as tvg-id
	Name         string
	LogoURL      string
	StreamURL    string
	ProgramID    int64
	HasProgramID bool
}

// WriteM3U writes the extended playlist for items to w. Each entry carries
// a reconnect option for players that drop the stream, the tvg metadata
// line, an optional program selector and the raw stream URL.
func WriteM3U(w io.Writer, items []Item) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	for _, it := range items {
		buf.WriteString("#EXTVLCOPT:http-reconnect=true\n")
		fmt.Fprintf(buf,
			`#EXTINF:-1 tvg-id="%s" tvg-name="%s" tvg-logo="%s", %s`+"\n",
			it.ID, it.Name, it.LogoURL, it.Name,
		)
		// program=0 selects nothing; emit the option only for real IDs.
		if it.HasProgramID && it.ProgramID != 0 {
			fmt.Fprintf(buf, "#EXTVLCOPT:program=%d\n", it.ProgramID)
		}
		buf.WriteString(it.StreamURL + "\n")
	}
	_, err := io.Copy(w, buf)
	return err
}
