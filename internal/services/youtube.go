// YouTube Data API v3 [MetadataSource] implementation
//
// Uses API key authentication. Requests pass through a shared rate limiter
// so bulk reconciliations stay inside the daily quota.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/SayWess/Musicarr/internal/shared"
)

const defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

// videoBatchSize is the maximum number of ids accepted by a single
// videos.list call.
const videoBatchSize = 50

// pageSize is the maximum page size of playlistItems.list.
const pageSize = 50

// YouTubeImage represents one thumbnail variant in API responses.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// youtubeThumbnails holds the named thumbnail variants of a resource.
// Larger variants are only present when the upstream rendered them.
type youtubeThumbnails struct {
	Default  *YouTubeImage `json:"default"`
	Medium   *YouTubeImage `json:"medium"`
	High     *YouTubeImage `json:"high"`
	Standard *YouTubeImage `json:"standard"`
	Maxres   *YouTubeImage `json:"maxres"`
}

// best returns the largest available thumbnail URL
func (t youtubeThumbnails) best() string {
	for _, img := range []*YouTubeImage{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if img != nil && img.URL != "" {
			return img.URL
		}
	}
	return ""
}

// YouTubeService implements [MetadataSource] against the YouTube Data API.
type YouTubeService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewYouTubeService creates a YouTube Data API client. An empty baseURL
// selects the public API endpoint; tests point it at a local server.
func NewYouTubeService(apiKey, baseURL string, requestsPerSecond float64) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYouTubeBaseURL
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 4
	}

	return &YouTubeService{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Name returns the upstream platform name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

func (y *YouTubeService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	if y.apiKey == "" {
		return shared.ErrMissingAPIKey
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("key", y.apiKey)
	apiURL := y.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			return fmt.Errorf("%w: status %d: %s", shared.ErrUpstreamFetch, resp.StatusCode, errResp.Error.Message)
		}
		return fmt.Errorf("%w: status %d", shared.ErrUpstreamFetch, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetPlaylist retrieves a playlist's snippet by external ID.
//
// Calls playlists.list with part=snippet.
func (y *YouTubeService) GetPlaylist(ctx context.Context, playlistID string) (*PlaylistInfo, error) {
	var response struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title        string            `json:"title"`
				Description  string            `json:"description"`
				ChannelID    string            `json:"channelId"`
				ChannelTitle string            `json:"channelTitle"`
				Thumbnails   youtubeThumbnails `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", playlistID)

	if err := y.doRequest(ctx, "/playlists", params, &response); err != nil {
		return nil, err
	}
	if len(response.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}

	item := response.Items[0]
	return &PlaylistInfo{
		ID:           item.ID,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		Thumbnail:    item.Snippet.Thumbnails.best(),
		ChannelID:    item.Snippet.ChannelID,
		ChannelTitle: item.Snippet.ChannelTitle,
		ChannelURL:   channelURL(item.Snippet.ChannelID),
	}, nil
}

// GetPlaylistItems retrieves every member video ID in playlist order.
//
// Calls playlistItems.list with part=contentDetails, following nextPageToken
// until exhausted.
func (y *YouTubeService) GetPlaylistItems(ctx context.Context, playlistID string) ([]string, error) {
	var videoIDs []string
	pageToken := ""

	for {
		var response struct {
			Items []struct {
				ContentDetails struct {
					VideoID string `json:"videoId"`
				} `json:"contentDetails"`
			} `json:"items"`
			NextPageToken string `json:"nextPageToken"`
		}

		params := url.Values{}
		params.Set("part", "contentDetails")
		params.Set("playlistId", playlistID)
		params.Set("maxResults", fmt.Sprintf("%d", pageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		if err := y.doRequest(ctx, "/playlistItems", params, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			videoIDs = append(videoIDs, item.ContentDetails.VideoID)
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return videoIDs, nil
}

// GetVideos retrieves snippet and duration details for the given video IDs,
// batching requests at the API's id limit. IDs absent from the result are
// unavailable upstream.
//
// Calls videos.list with part=snippet,contentDetails.
func (y *YouTubeService) GetVideos(ctx context.Context, videoIDs []string) ([]VideoDetail, error) {
	var details []VideoDetail

	for start := 0; start < len(videoIDs); start += videoBatchSize {
		end := min(start+videoBatchSize, len(videoIDs))

		batch, err := y.getVideoBatch(ctx, videoIDs[start:end])
		if err != nil {
			return nil, err
		}
		details = append(details, batch...)
	}

	return details, nil
}

func (y *YouTubeService) getVideoBatch(ctx context.Context, videoIDs []string) ([]VideoDetail, error) {
	var response struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title        string            `json:"title"`
				Description  string            `json:"description"`
				PublishedAt  string            `json:"publishedAt"`
				ChannelID    string            `json:"channelId"`
				ChannelTitle string            `json:"channelTitle"`
				Thumbnails   youtubeThumbnails `json:"thumbnails"`
			} `json:"snippet"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", strings.Join(videoIDs, ","))

	if err := y.doRequest(ctx, "/videos", params, &response); err != nil {
		return nil, err
	}

	details := make([]VideoDetail, 0, len(response.Items))
	for _, item := range response.Items {
		details = append(details, VideoDetail{
			ID:           item.ID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			Thumbnail:    item.Snippet.Thumbnails.best(),
			UploadDate:   compactDate(item.Snippet.PublishedAt),
			Duration:     CompactDuration(item.ContentDetails.Duration),
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			ChannelURL:   channelURL(item.Snippet.ChannelID),
		})
	}

	return details, nil
}

// Search performs a free-text video search, returning at most 25 hits.
//
// Calls search.list with part=snippet and type=video.
func (y *YouTubeService) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var response struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string            `json:"title"`
				Description  string            `json:"description"`
				PublishedAt  string            `json:"publishedAt"`
				ChannelTitle string            `json:"channelTitle"`
				Thumbnails   youtubeThumbnails `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", "25")
	params.Set("q", query)

	if err := y.doRequest(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(response.Items))
	for _, item := range response.Items {
		results = append(results, SearchResult{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			Thumbnail:    item.Snippet.Thumbnails.best(),
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  compactDate(item.Snippet.PublishedAt),
		})
	}

	return results, nil
}

// channelURL builds the public channel URL for a channel ID
func channelURL(channelID string) string {
	if channelID == "" {
		return ""
	}
	return "https://www.youtube.com/channel/" + channelID
}

// compactDate converts an RFC 3339 timestamp to YYYYMMDD, passing through
// values it cannot parse
func compactDate(publishedAt string) string {
	t, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		return publishedAt
	}
	return t.Format("20060102")
}

// CompactDuration converts an ISO 8601 duration like "PT2M51S" to the
// compact display form "2:51". Hours appear only when present, e.g.
// "PT1H3M20S" becomes "1:03:20".
func CompactDuration(iso string) string {
	rest, ok := strings.CutPrefix(iso, "PT")
	if !ok {
		rest, ok = strings.CutPrefix(iso, "P")
		if !ok {
			return iso
		}
	}

	hours, minutes, seconds := 0, 0, 0
	num := 0
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
		case r == 'H':
			hours = num
			num = 0
		case r == 'M':
			minutes = num
			num = 0
		case r == 'S':
			seconds = num
			num = 0
		default:
			return iso
		}
	}

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
