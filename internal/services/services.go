// package services defines interface MetadataSource for querying upstream
// video platforms
package services

import (
	"context"
)

// MetadataSource is the read-only metadata client used by reconciliation.
// The only production implementation is [YouTubeService]; tests substitute
// fakes.
type MetadataSource interface {
	// GetPlaylist retrieves a playlist's descriptive metadata by its
	// external ID.
	GetPlaylist(ctx context.Context, playlistID string) (*PlaylistInfo, error)

	// GetPlaylistItems retrieves the external video IDs of every playlist
	// member, in playlist order, following pagination to the end.
	GetPlaylistItems(ctx context.Context, playlistID string) ([]string, error)

	// GetVideos retrieves details for the given external video IDs.
	// IDs the upstream no longer knows are simply absent from the result,
	// which is how callers detect unavailable videos.
	GetVideos(ctx context.Context, videoIDs []string) ([]VideoDetail, error)

	// Search performs a free-text video search.
	Search(ctx context.Context, query string) ([]SearchResult, error)

	// Name returns the name of the upstream platform (e.g., "YouTube")
	Name() string
}

// PlaylistInfo represents a playlist's upstream metadata
type PlaylistInfo struct {
	ID           string
	Title        string
	Description  string
	Thumbnail    string
	ChannelID    string
	ChannelTitle string
	ChannelURL   string
}

// VideoDetail represents one video's upstream metadata
type VideoDetail struct {
	ID           string
	Title        string
	Description  string
	Thumbnail    string
	UploadDate   string // YYYYMMDD
	Duration     string // Compact form, e.g. "2:51" or "1:03:20"
	ChannelID    string
	ChannelTitle string
	ChannelURL   string
}

// SearchResult represents one hit of a free-text video search
type SearchResult struct {
	VideoID      string
	Title        string
	Description  string
	Thumbnail    string
	ChannelTitle string
	PublishedAt  string
}
