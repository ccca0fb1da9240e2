// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository wraps a *sql.DB with handwritten queries for one table.
// Lookups that miss return the matching sentinel error from [shared]
// (e.g. [shared.ErrPlaylistNotFound]) so callers can branch with errors.Is.
//
// Key Implementations:
//   - [UploaderRepository] : Channel identities with channel_id-based upserts
//   - [PlaylistRepository] : Mirrored playlists with policy-preserving updates
//   - [VideoRepository] : Globally unique videos with source_id-based upserts
//   - [PlaylistVideoRepository] : Membership table carrying download state and overrides
//   - [RootFolderRepository] : Allowed storage roots with a single-default invariant
package repositories
