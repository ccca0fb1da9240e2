package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
)

var (
	_ list.Item = playlistItem{}
)

// playlistItem wraps [PlaylistSummary] to implement [list.Item].
type playlistItem struct {
	playlist PlaylistSummary
}

func (i playlistItem) FilterValue() string { return i.playlist.Title }
func (i playlistItem) Title() string       { return i.playlist.Title }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d/%d downloaded", i.playlist.NbDownloaded, i.playlist.NbVideos)
	if i.playlist.LastPublished != "" {
		desc = fmt.Sprintf("%s • last published %s", desc, i.playlist.LastPublished)
	}
	return desc
}
