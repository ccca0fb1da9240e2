package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMissingAPIKey = fmt.Errorf("missing YouTube API key")

	// Lookup errors
	ErrNotFound           = fmt.Errorf("not found")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrVideoNotFound      = fmt.Errorf("video not found")
	ErrUploaderNotFound   = fmt.Errorf("uploader not found")
	ErrMembershipNotFound = fmt.Errorf("video not found in playlist")

	// Job errors
	ErrAlreadyInProgress = fmt.Errorf("already in progress")
	ErrAlreadyExists     = fmt.Errorf("already exists")

	// Download errors
	ErrNoRootFolder     = fmt.Errorf("no root folder configured")
	ErrVideoUnavailable = fmt.Errorf("video not available")
	ErrUpstreamFetch    = fmt.Errorf("upstream fetch failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidPath     = fmt.Errorf("invalid path")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrUnknownField    = fmt.Errorf("unknown field")
)
