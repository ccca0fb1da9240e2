// Package ui implements the watch dashboard, an interactive terminal
// interface using bubbletea's Elm architecture.
//
// The dashboard lists the tracked playlists with their download counts and
// renders a live activity feed fed by the server's playlists websocket
// group. Ongoing downloads show a progress bar with the current stage.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Server events flow through a channel from [Client.Events], re-armed one
// message at a time via tea commands.
//
// Keyboard navigation uses vim-style bindings (j/k, r to refresh, d to
// download, q to quit) with contextual help displayed via charmbracelet/bubbles/help.
package ui
