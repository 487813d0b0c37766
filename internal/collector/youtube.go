package collector

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"contentpulse/internal/model"
)

// YouTube reads the YouTube Data API v3.
type YouTube struct {
	baseURL string
	apiKey  string
	c       *httpClient
}

func NewYouTube(apiKey string) *YouTube {
	return &YouTube{baseURL: "https://www.googleapis.com/youtube/v3", apiKey: apiKey, c: newHTTPClient(model.PlatformYouTube)}
}

func (y *YouTube) Platform() model.Platform { return model.PlatformYouTube }

type youtubeVideos struct {
	Items []struct {
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (y *YouTube) videos(ctx context.Context, id, part string) (youtubeVideos, error) {
	var out youtubeVideos
	q := url.Values{"part": {part}, "id": {id}, "key": {y.apiKey}}
	if err := y.c.getJSON(ctx, y.baseURL+"/videos?"+q.Encode(), nil, &out); err != nil {
		return out, err
	}
	if len(out.Items) == 0 {
		return out, fmt.Errorf("youtube video %s: %w", id, model.ErrNotFound)
	}
	return out, nil
}

// FetchMetrics reads view, like and comment counts. Watch time needs the
// Analytics API and is reported as zero.
func (y *YouTube) FetchMetrics(ctx context.Context, item model.ContentItem) (model.RawMetrics, error) {
	id, err := queryID(item)
	if err != nil {
		return model.RawMetrics{}, err
	}
	v, err := y.videos(ctx, id, "statistics")
	if err != nil {
		return model.RawMetrics{}, err
	}
	st := v.Items[0].Statistics
	return model.RawMetrics{
		Views:    atoi64(st.ViewCount),
		Likes:    atoi64(st.LikeCount),
		Comments: atoi64(st.CommentCount),
	}, nil
}

func (y *YouTube) FetchInfo(ctx context.Context, contentID string) (model.ContentInfo, error) {
	v, err := y.videos(ctx, contentID, "snippet,contentDetails")
	if err != nil {
		return model.ContentInfo{}, err
	}
	it := v.Items[0]
	return model.ContentInfo{
		Title:       it.Snippet.Title,
		PublishedAt: it.Snippet.PublishedAt.UTC(),
		Duration:    FormatDuration(it.ContentDetails.Duration),
	}, nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// FormatDuration renders an ISO-8601 duration such as PT1H2M3S as 1:02:03,
// or m:ss under an hour. Unparseable input yields "".
func FormatDuration(iso string) string {
	m := isoDuration.FindStringSubmatch(iso)
	if m == nil {
		return ""
	}
	days, hours, mins, secs := atoi64(m[1]), atoi64(m[2]), atoi64(m[3]), atoi64(m[4])
	hours += days * 24
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

func atoi64(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (y *YouTube) client() *httpClient { return y.c }

// TestConnection requests one chart video to check the API key.
func (y *YouTube) TestConnection(ctx context.Context) error {
	var out youtubeVideos
	q := url.Values{"part": {"id"}, "chart": {"mostPopular"}, "maxResults": {"1"}, "key": {y.apiKey}}
	if err := y.c.getJSON(ctx, y.baseURL+"/videos?"+q.Encode(), nil, &out); err != nil {
		return fmt.Errorf("youtube connection test: %w", err)
	}
	return nil
}
