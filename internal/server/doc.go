// Package server provides the HTTP API and websocket endpoints of the
// playlist mirror.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with its method and wildcard patterns.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// ServeHTTP dispatches on the matched pattern.
//
// # Resources
//
//   - [PlaylistHandler]: tracked playlists, their member videos, refresh and download operations
//   - [VideoHandler]: the library view, local and upstream search, single-video registration
//   - [UploaderHandler]: channel listing and avatar images
//   - [RootFolderHandler]: storage roots and the mount browser
//   - [LibraryHandler]: configuration export and import
//
// # Asynchronous Operations
//
// Registration, refresh and download endpoints answer 202 Accepted and run
// in the background; clients follow progress on the /ws/playlists and
// /ws/uploaders websocket endpoints.
package server
