package shared

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	validFolderRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)
	badTitleChars    = regexp.MustCompile(`[<>:"\\|?*\x00-\x1F]`)
)

// SanitizeTitle strips characters that are not allowed in file names and
// replaces slashes with dashes so a title can be used inside an output path.
func SanitizeTitle(title string) string {
	sanitized := badTitleChars.ReplaceAllString(title, "")
	return strings.ReplaceAll(sanitized, "/", "-")
}

// IsValidFolderName reports whether name is usable as a single folder
// component: URL-decoded, 1-100 characters, letters, digits, spaces,
// underscores and dashes only.
func IsValidFolderName(name string) bool {
	decoded, err := url.QueryUnescape(name)
	if err != nil {
		return false
	}
	return validFolderRegex.MatchString(decoded) && len(decoded) > 0 && len(decoded) <= 100
}

// IsValidFolderPath reports whether every component of the given relative
// path is a valid folder name. Traversal sequences are rejected because "."
// and ".." never match the component pattern.
func IsValidFolderPath(p string) bool {
	if p == "" {
		return false
	}

	decoded, err := url.QueryUnescape(p)
	if err != nil {
		return false
	}

	normalized := strings.Trim(path.Clean(decoded), "/")
	for _, component := range strings.Split(normalized, "/") {
		if !IsValidFolderName(component) {
			return false
		}
	}

	return true
}
