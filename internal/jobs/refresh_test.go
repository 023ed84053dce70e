// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4n4n4s/enigma2jellyfin/internal/config"
	"github.com/4n4n4s/enigma2jellyfin/internal/epg"
	"github.com/4n4n4s/enigma2jellyfin/internal/openwebif"
)

const testBouquetRef = `1:7:1:0:0:0:0:0:0:0:FROM BOUQUET "userbouquet.News.tv" ORDER BY bouquet`

// fakeClient stubs the OpenWebIf client for pipeline tests.
type fakeClient struct {
	resolveErr error
	channels   []openwebif.Service
	listErr    error
	epg        map[string][]openwebif.Event
	epgErr     map[string]error
}

func (f *fakeClient) ResolveBouquet(_ context.Context, name string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return testBouquetRef, nil
}

func (f *fakeClient) Channels(_ context.Context, ref string) ([]openwebif.Service, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeClient) EPG(_ context.Context, ref string) ([]openwebif.Event, error) {
	if err, ok := f.epgErr[ref]; ok {
		return nil, err
	}
	return f.epg[ref], nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Host = "10.0.0.101"
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestRefreshWritesBothArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cl := &fakeClient{
		channels: []openwebif.Service{
			{Name: "News One", Ref: "1:0:1:3ABF:0:0:0:0:0:0:"},
			{Name: "Docu", Ref: "1:0:19:132F:3EF:1:C00000:0:0:0:"},
		},
		epg: map[string][]openwebif.Event{
			"1:0:1:3ABF:0:0:0:0:0:0:": {
				{Title: "Evening News", Description: "news", Start: "1700000000", Duration: "3600"},
				{Title: "Garbage", Start: "None", Duration: "None"},
			},
		},
	}

	status, err := Refresh(context.Background(), cfg, cl)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Channels)
	assert.Equal(t, 1, status.Programmes) // the garbage event is dropped
	assert.Equal(t, 0, status.EPGFailures)

	xmltvRaw, err := os.ReadFile(cfg.XMLTVPath())
	require.NoError(t, err)
	doc, err := epg.Parse(strings.NewReader(string(xmltvRaw)))
	require.NoError(t, err)

	require.Len(t, doc.Channels, 2)
	assert.Equal(t, "1_0_1_3ABF_0_0_0_0_0_0", doc.Channels[0].ID)
	assert.Equal(t, "News One", doc.Channels[0].DisplayName)
	require.NotNil(t, doc.Channels[0].Icon)
	assert.Equal(t,
		"http://10.0.0.101:80/picon/1_0_1_3ABF_0_0_0_0_0_0.png",
		doc.Channels[0].Icon.Src)

	require.Len(t, doc.Programs, 1)
	assert.Equal(t, "1_0_1_3ABF_0_0_0_0_0_0", doc.Programs[0].Channel)
	assert.Equal(t, "Evening News", doc.Programs[0].Title.Value)
	assert.Equal(t, "20231114221320 +0000", doc.Programs[0].Start)
	assert.Equal(t, "20231114231320 +0000", doc.Programs[0].Stop)

	m3u, err := os.ReadFile(cfg.M3UPath())
	require.NoError(t, err)
	text := string(m3u)
	assert.True(t, strings.HasPrefix(text, "#EXTM3U\n"))
	assert.Contains(t, text, "#EXTVLCOPT:http-reconnect=true")
	assert.Contains(t, text, `tvg-id="1_0_1_3ABF_0_0_0_0_0_0"`)
	assert.Contains(t, text, "#EXTVLCOPT:program=15039")
	// Stream URLs carry the native reference verbatim on the stream port.
	assert.Contains(t, text, "http://10.0.0.101:8001/1:0:1:3ABF:0:0:0:0:0:0:")
	// Playlist logos are served from the stream port base.
	assert.Contains(t, text, `tvg-logo="http://10.0.0.101:8001/picon/1_0_1_3ABF_0_0_0_0_0_0.png"`)
}

func TestRefreshBouquetNotFoundPreservesOutputs(t *testing.T) {
	cfg := testConfig(t)

	prevXMLTV := []byte("previous xmltv contents")
	prevM3U := []byte("previous playlist contents")
	require.NoError(t, os.WriteFile(cfg.XMLTVPath(), prevXMLTV, 0o644))
	require.NoError(t, os.WriteFile(cfg.M3UPath(), prevM3U, 0o644))

	cl := &fakeClient{
		resolveErr: fmt.Errorf("bouquet %q: %w", cfg.Bouquet, openwebif.ErrBouquetNotFound),
	}

	_, err := Refresh(context.Background(), cfg, cl)
	require.Error(t, err)
	assert.ErrorIs(t, err, openwebif.ErrBouquetNotFound)

	gotXMLTV, err := os.ReadFile(cfg.XMLTVPath())
	require.NoError(t, err)
	gotM3U, err := os.ReadFile(cfg.M3UPath())
	require.NoError(t, err)
	assert.Equal(t, prevXMLTV, gotXMLTV, "aborted run must not touch previous XMLTV")
	assert.Equal(t, prevM3U, gotM3U, "aborted run must not touch previous playlist")
}

func TestRefreshListFailureAbortsRun(t *testing.T) {
	cfg := testConfig(t)
	cl := &fakeClient{
		listErr: &openwebif.DeviceError{
			Sentinel:  openwebif.ErrUpstreamUnavailable,
			Operation: "channels",
		},
	}

	_, err := Refresh(context.Background(), cfg, cl)
	require.Error(t, err)
	assert.ErrorIs(t, err, openwebif.ErrUpstreamUnavailable)

	_, statErr := os.Stat(cfg.XMLTVPath())
	assert.True(t, os.IsNotExist(statErr), "aborted run must not create outputs")
}

func TestRefreshContinuesPastChannelEPGFailure(t *testing.T) {
	cfg := testConfig(t)
	cl := &fakeClient{
		channels: []openwebif.Service{
			{Name: "Works", Ref: "1:0:1:3ABF:0:0:0:0:0:0:"},
			{Name: "Broken", Ref: "1:0:1:445D:0:0:0:0:0:0:"},
		},
		epg: map[string][]openwebif.Event{
			"1:0:1:3ABF:0:0:0:0:0:0:": {
				{Title: "Show", Start: "1700000000", Duration: "1800"},
			},
		},
		epgErr: map[string]error{
			"1:0:1:445D:0:0:0:0:0:0:": &openwebif.DeviceError{
				Sentinel:  openwebif.ErrUpstreamUnavailable,
				Operation: "epg",
			},
		},
	}

	status, err := Refresh(context.Background(), cfg, cl)
	require.NoError(t, err, "per-channel EPG failure must not abort the run")
	assert.Equal(t, 2, status.Channels)
	assert.Equal(t, 1, status.Programmes)
	assert.Equal(t, 1, status.EPGFailures)

	raw, err := os.ReadFile(cfg.XMLTVPath())
	require.NoError(t, err)
	doc, err := epg.Parse(strings.NewReader(string(raw)))
	require.NoError(t, err)

	// Both channels are written; the failing one simply has no programmes.
	require.Len(t, doc.Channels, 2)
	require.Len(t, doc.Programs, 1)
	assert.Equal(t, "1_0_1_3ABF_0_0_0_0_0_0", doc.Programs[0].Channel)
}

func TestRefreshEmptyBouquetStillWrites(t *testing.T) {
	cfg := testConfig(t)
	cl := &fakeClient{channels: nil}

	status, err := Refresh(context.Background(), cfg, cl)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Channels)

	raw, err := os.ReadFile(cfg.XMLTVPath())
	require.NoError(t, err)
	doc, err := epg.Parse(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Empty(t, doc.Channels)

	m3u, err := os.ReadFile(cfg.M3UPath())
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(m3u))
}

// TestRefreshEndToEnd exercises the pipeline through the real client against
// a stubbed OpenWebIf box.
func TestRefreshEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/web/getservices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if r.URL.Query().Get("sRef") == testBouquetRef {
			_, _ = fmt.Fprint(w, `<e2servicelist>
 <e2service><e2servicereference>1:64:0:0:0:0:0:0:0:0:</e2servicereference><e2servicename>--- marker ---</e2servicename></e2service>
 <e2service><e2servicereference>1:0:1:3ABF:0:0:0:0:0:0:</e2servicereference><e2servicename>News One</e2servicename></e2service>
</e2servicelist>`)
			return
		}
		_, _ = fmt.Fprintf(w, `<e2servicelist>
 <e2service><e2servicereference>%s</e2servicereference><e2servicename>News</e2servicename></e2service>
</e2servicelist>`, testBouquetRef)
	})
	mux.HandleFunc("/web/epgservice", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = fmt.Fprint(w, `<e2eventlist>
 <e2event><e2eventstart>1700000000</e2eventstart><e2eventduration>3600</e2eventduration><e2eventtitle>Evening News</e2eventtitle><e2eventdescription>news</e2eventdescription></e2event>
</e2eventlist>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	boxURL, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Bouquet = "News"
	cfg.Host = boxURL.Hostname()
	port := boxURL.Port()
	require.NotEmpty(t, port)
	_, err = fmt.Sscan(port, &cfg.ControlPort)
	require.NoError(t, err)

	cl := openwebif.New(cfg.ControlBaseURL(), openwebif.Options{})
	status, err := Refresh(context.Background(), cfg, cl)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Channels, "marker entries are filtered out")
	assert.Equal(t, 1, status.Programmes)

	raw, err := os.ReadFile(cfg.XMLTVPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `channel id="1_0_1_3ABF_0_0_0_0_0_0"`)
}
