// Package tracker provides in-memory tracking of in-flight fetch and
// download jobs.
//
// Every long-running operation claims a [Key] before starting and releases
// it when done. A second claim on a held key fails, which is how duplicate
// work on the same playlist or video is suppressed process-wide. The tracker
// holds no persistent state; restarting the process clears all claims.
package tracker

import (
	"sync"
)

// JobKind names the category of a tracked job.
type JobKind string

const (
	KindPlaylistFetch    JobKind = "playlist_fetch"
	KindVideoFetch       JobKind = "video_fetch"
	KindPlaylistDownload JobKind = "playlist_download"
	KindVideoDownload    JobKind = "video_download"
	KindAvatarDownload   JobKind = "avatar_download"
)

// Key identifies one unit of in-flight work. Playlist-scoped jobs leave
// Video empty; video-scoped jobs carry both ids so the same video can be
// worked on in two different playlists without colliding.
type Key struct {
	Kind     JobKind
	Playlist string
	Video    string
}

// PlaylistFetch keys a metadata refresh of one playlist
func PlaylistFetch(playlistID string) Key {
	return Key{Kind: KindPlaylistFetch, Playlist: playlistID}
}

// VideoFetch keys a metadata refresh of one video within a playlist
func VideoFetch(playlistID, videoID string) Key {
	return Key{Kind: KindVideoFetch, Playlist: playlistID, Video: videoID}
}

// PlaylistDownload keys a bulk download pass over one playlist
func PlaylistDownload(playlistID string) Key {
	return Key{Kind: KindPlaylistDownload, Playlist: playlistID}
}

// VideoDownload keys a single video download within a playlist
func VideoDownload(playlistID, videoID string) Key {
	return Key{Kind: KindVideoDownload, Playlist: playlistID, Video: videoID}
}

// AvatarDownload keys an uploader avatar fetch; the uploader id occupies
// the playlist slot
func AvatarDownload(uploaderID string) Key {
	return Key{Kind: KindAvatarDownload, Playlist: uploaderID}
}

// Tracker is a concurrency-safe claim table for in-flight jobs.
type Tracker struct {
	mu     sync.Mutex
	claims map[Key]struct{}
}

// New creates an empty Tracker
func New() *Tracker {
	return &Tracker{claims: make(map[Key]struct{})}
}

// TryClaim atomically claims the key, reporting false when it is already
// held.
func (t *Tracker) TryClaim(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, held := t.claims[key]; held {
		return false
	}
	t.claims[key] = struct{}{}
	return true
}

// Release frees the key. Releasing an unheld key is a no-op, so deferred
// releases stay safe on error paths.
func (t *Tracker) Release(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.claims, key)
}

// IsClaimed reports whether the key is currently held
func (t *Tracker) IsClaimed(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, held := t.claims[key]
	return held
}

// ClaimedVideos returns the membership ids of videos currently downloading
// in the given playlist. The result feeds the stuck-state recovery that
// resets rows with no live claim.
func (t *Tracker) ClaimedVideos(kind JobKind, playlistID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var videos []string
	for key := range t.claims {
		if key.Kind == kind && key.Playlist == playlistID && key.Video != "" {
			videos = append(videos, key.Video)
		}
	}
	return videos
}
