package ui

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/SayWess/Musicarr/internal/notify"
)

// PlaylistSummary mirrors the API's playlist listing payload.
type PlaylistSummary struct {
	ID            string `json:"id"`
	SourceID      string `json:"source_id"`
	Title         string `json:"title"`
	LastPublished string `json:"last_published"`
	NbVideos      int    `json:"nb_videos"`
	NbDownloaded  int    `json:"nb_videos_downloaded"`
}

// Client is the thin API client the dashboard talks to the server with.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL, e.g. "http://localhost:8686".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Playlists lists the tracked playlists with their member counts.
func (c *Client) Playlists(ctx context.Context) ([]PlaylistSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/playlists", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing playlists: unexpected status %d", resp.StatusCode)
	}

	var playlists []PlaylistSummary
	if err := json.NewDecoder(resp.Body).Decode(&playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// Refresh asks the server to reconcile a playlist's metadata.
func (c *Client) Refresh(ctx context.Context, playlistID string) error {
	return c.post(ctx, "/api/playlists/"+playlistID+"/refresh")
}

// Download asks the server to download a playlist's pending videos.
func (c *Client) Download(ctx context.Context, playlistID string) error {
	return c.post(ctx, "/api/playlists/"+playlistID+"/download")
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// Events connects to the playlists websocket group and forwards every
// message until ctx is canceled. The returned channel closes when the
// connection drops.
func (c *Client) Events(ctx context.Context) (<-chan notify.Message, error) {
	wsURL, err := url.Parse(c.baseURL + "/ws/playlists")
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, err
	}

	events := make(chan notify.Message, 16)
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg notify.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case events <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close the socket when the caller gives up so the reader unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return events, nil
}
