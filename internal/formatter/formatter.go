// package formatter provides functions to export playlist tracklists to
// various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/SayWess/Musicarr/internal/models"
)

// ExportToCSV renders a playlist's members as CSV with columns: ID, Title, Duration, Uploaded, Available
func ExportToCSV(playlist *models.Playlist, videos []*models.Video) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Duration", "Uploaded", "Available"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, video := range videos {
		record := []string{
			video.SourceID,
			video.Title,
			video.Duration,
			video.UploadDate,
			fmt.Sprintf("%t", video.Available),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a playlist's members as a Markdown tracklist
func ExportToMarkdown(playlist *models.Playlist, videos []*models.Video) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", playlist.Title))

	if playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", playlist.Description))
	}
	buf.WriteString(fmt.Sprintf("**Videos**: %d\n\n", len(videos)))

	buf.WriteString("## Tracklist\n\n")
	for i, video := range videos {
		durationPart := ""
		if video.Duration != "" {
			durationPart = fmt.Sprintf(" [%s]", video.Duration)
		}
		line := fmt.Sprintf("%d. %s%s\n", i+1, video.Title, durationPart)
		if !video.Available {
			line = fmt.Sprintf("%d. ~~%s~~ (unavailable)\n", i+1, video.Title)
		}
		buf.WriteString(line)
	}

	return buf.Bytes(), nil
}

// ExportToText renders a playlist's members as plain text
func ExportToText(playlist *models.Playlist, videos []*models.Video) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", playlist.Title))
	if playlist.Description != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", playlist.Description))
	}
	buf.WriteString(fmt.Sprintf("Videos: %d\n\n", len(videos)))

	for i, video := range videos {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, video.Title))
	}

	return buf.Bytes(), nil
}

// WriteTracklist renders the playlist in the given format ("csv",
// "markdown" or "text") and writes it to path. An empty path derives the
// filename from the playlist's external id.
func WriteTracklist(playlist *models.Playlist, videos []*models.Video, format, path string) (string, error) {
	var data []byte
	var err error
	var ext string

	switch format {
	case "csv":
		data, err = ExportToCSV(playlist, videos)
		ext = "csv"
	case "markdown", "md":
		data, err = ExportToMarkdown(playlist, videos)
		ext = "md"
	case "text", "txt", "":
		data, err = ExportToText(playlist, videos)
		ext = "txt"
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("%s_tracklist.%s", playlist.SourceID, ext)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write tracklist: %w", err)
	}
	return path, nil
}
