// Package endpoint builds realtime connection targets from a page origin.
//
// A target is resolved once and never mutated: the scheme is upgraded from
// http/https to ws/wss, the hostname is kept, the port is the realtime
// service's fixed port and the path names the channel.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is the port the realtime service listens on.
const DefaultPort = 8000

// Channel identifies a realtime channel on the server.
type Channel string

const (
	ChannelAlerts    Channel = "alerts"
	ChannelCamera    Channel = "camera"
	ChannelDashboard Channel = "dashboard"
)

// Errors
var (
	ErrInvalidOrigin  = errors.New("invalid origin")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrMissingID      = errors.New("channel requires an id")
)

// Target is an immutable realtime endpoint descriptor.
type Target struct {
	Scheme string // "ws" or "wss"
	Host   string // Hostname only, no port
	Port   int
	Path   string // Always starts and ends with "/"
}

// URL returns the dialable WebSocket URL.
func (t Target) URL() string {
	u := url.URL{
		Scheme: t.Scheme,
		Host:   net.JoinHostPort(t.Host, strconv.Itoa(t.Port)),
		Path:   t.Path,
	}
	return u.String()
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return t.URL()
}

// Origin returns the http(s) origin matching the target, suitable for the
// Origin handshake header.
func (t Target) Origin() string {
	scheme := "http"
	if t.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + t.Host
}

// Options tune target resolution.
type Options struct {
	Port int // Zero means DefaultPort
}

// Resolve derives a Target from an origin such as "https://cams.example.com".
// The id is required for ChannelCamera and ignored otherwise.
func Resolve(origin string, channel Channel, id string, opts Options) (Target, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}

	var scheme string
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidOrigin, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("%w: missing host in %q", ErrInvalidOrigin, origin)
	}

	path, err := channelPath(channel, id)
	if err != nil {
		return Target{}, err
	}

	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}

	return Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   path,
	}, nil
}

func channelPath(channel Channel, id string) (string, error) {
	switch channel {
	case ChannelAlerts, ChannelDashboard:
		return "/ws/" + string(channel) + "/", nil
	case ChannelCamera:
		id = strings.TrimSpace(id)
		if id == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingID, channel)
		}
		return "/ws/camera/" + url.PathEscape(id) + "/", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
}
