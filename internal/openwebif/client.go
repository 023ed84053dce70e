// SPDX-License-Identifier: MIT

// Package openwebif is a client for the Enigma2 OpenWebIf control API.
// It speaks the box's legacy /web XML endpoints; the element names
// (e2service, e2servicereference, e2event, ...) are fixed by the device.
package openwebif

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/4n4n4s/enigma2jellyfin/internal/serviceref"
	"golang.org/x/time/rate"
)

// Service is one entry of a service list: a channel, marker or bouquet.
// Name may be empty; upstream omits it for some entries.
type Service struct {
	Name string `xml:"e2servicename"`
	Ref  string `xml:"e2servicereference"`
}

// Event is one raw programme entry as reported by the box. Start and
// Duration stay strings here: single malformed events are routine upstream
// noise and must not fail decoding of the whole list.
type Event struct {
	Title       string `xml:"e2eventtitle"`
	Description string `xml:"e2eventdescription"`
	Start       string `xml:"e2eventstart"`
	Duration    string `xml:"e2eventduration"`
}

type serviceList struct {
	XMLName  xml.Name  `xml:"e2servicelist"`
	Services []Service `xml:"e2service"`
}

type eventList struct {
	XMLName xml.Name `xml:"e2eventlist"`
	Events  []Event  `xml:"e2event"`
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each request so a stalled box cannot block the next
	// scheduled run. Defaults to 30s.
	Timeout time.Duration
	// Transport optionally replaces the default transport, e.g. with the
	// on-disk response cache. The client works identically without it.
	Transport http.RoundTripper
	// RequestsPerSecond throttles calls to the box. Zero disables throttling.
	RequestsPerSecond float64
}

// Client talks to one OpenWebIf instance.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client for the control API at base, e.g. "http://10.0.0.101:80".
func New(base string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		limiter: limiter,
	}
}

// Services returns the receiver's full service lineup, bouquets included.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	var list serviceList
	if err := c.getXML(ctx, "services", c.base+"/web/getservices", &list); err != nil {
		return nil, err
	}
	return list.Services, nil
}

// ResolveBouquet maps a bouquet name to its service reference by scanning
// the full lineup for the first reference containing the name. Multiple
// matches resolve to scan order; the box does not offer anything stricter.
func (c *Client) ResolveBouquet(ctx context.Context, name string) (string, error) {
	services, err := c.Services(ctx)
	if err != nil {
		return "", err
	}
	for _, svc := range services {
		if strings.Contains(svc.Ref, name) {
			return svc.Ref, nil
		}
	}
	return "", fmt.Errorf("bouquet %q: %w", name, ErrBouquetNotFound)
}

// Channels expands a bouquet reference into its playable member channels,
// preserving the device-reported order. Markers and sub-bouquets are
// filtered out.
func (c *Client) Channels(ctx context.Context, bouquetRef string) ([]Service, error) {
	u := c.base + "/web/getservices?sRef=" + url.QueryEscape(bouquetRef)
	var list serviceList
	if err := c.getXML(ctx, "channels", u, &list); err != nil {
		return nil, err
	}
	channels := list.Services[:0]
	for _, svc := range list.Services {
		if serviceref.IsPlayable(svc.Ref) {
			channels = append(channels, svc)
		}
	}
	return channels, nil
}

// EPG returns the raw programme events for one channel reference. An empty
// schedule is a valid result.
func (c *Client) EPG(ctx context.Context, channelRef string) ([]Event, error) {
	u := c.base + "/web/epgservice?sRef=" + url.QueryEscape(channelRef)
	var list eventList
	if err := c.getXML(ctx, "epg", u, &list); err != nil {
		return nil, err
	}
	return list.Events, nil
}

func (c *Client) getXML(ctx context.Context, op, rawURL string, into any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &DeviceError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &DeviceError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &DeviceError{Sentinel: ErrUpstreamUnavailable, Operation: op, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return &DeviceError{Sentinel: ErrUpstreamError, Operation: op, Status: res.StatusCode}
	}

	dec := xml.NewDecoder(res.Body)
	// The box only ever emits plain UTF-8; refuse entity expansion.
	dec.Entity = make(map[string]string)
	if err := dec.Decode(into); err != nil {
		return &DeviceError{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	return nil
}

// StreamURL builds the playback URL for a channel. The box expects its
// native reference format verbatim on the stream path, so the reference is
// deliberately not URL-encoded.
func StreamURL(streamBase, ref string) string {
	return strings.TrimRight(streamBase, "/") + "/" + ref
}

// PiconURL builds the logo URL for a derived channel ID.
func PiconURL(base, channelID string) string {
	return strings.TrimRight(base, "/") + "/picon/" + channelID + ".png"
}
