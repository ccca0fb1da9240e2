// Package services implements metadata clients for upstream video platforms.
//
// The [MetadataSource] interface abstracts the upstream so reconciliation and
// the HTTP layer never talk to the network directly. [YouTubeService] is the
// production implementation, built on the YouTube Data API v3 with API key
// authentication and a client-side rate limiter.
//
// Key Types:
//   - [MetadataSource] : Read-only upstream metadata interface
//   - [YouTubeService] : YouTube Data API v3 client
//   - [PlaylistInfo] / [VideoDetail] / [SearchResult] : Upstream DTOs
package services
