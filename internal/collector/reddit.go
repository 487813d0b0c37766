package collector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"contentpulse/internal/model"
)

// Reddit reads the public JSON listing of a post.
type Reddit struct {
	baseURL string
	c       *httpClient
}

func NewReddit(userAgent string) *Reddit {
	c := newHTTPClient(model.PlatformReddit)
	if userAgent != "" {
		c.userAgent = userAgent
	}
	return &Reddit{baseURL: "https://www.reddit.com", c: c}
}

func (r *Reddit) Platform() model.Platform { return model.PlatformReddit }

type redditPost struct {
	Title         string  `json:"title"`
	Score         int64   `json:"score"`
	NumComments   int64   `json:"num_comments"`
	NumCrossposts int64   `json:"num_crossposts"`
	ViewCount     *int64  `json:"view_count"`
	CreatedUTC    float64 `json:"created_utc"`
}

func (r *Reddit) post(ctx context.Context, id string) (redditPost, error) {
	var listings []struct {
		Data struct {
			Children []struct {
				Data redditPost `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := r.c.getJSON(ctx, r.baseURL+"/comments/"+url.PathEscape(id)+".json?limit=1", nil, &listings); err != nil {
		return redditPost{}, err
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return redditPost{}, fmt.Errorf("reddit post %s: %w", id, model.ErrNotFound)
	}
	return listings[0].Data.Children[0].Data, nil
}

// FetchMetrics maps score to likes and crossposts to shares.
func (r *Reddit) FetchMetrics(ctx context.Context, item model.ContentItem) (model.RawMetrics, error) {
	id, err := queryID(item)
	if err != nil {
		return model.RawMetrics{}, err
	}
	p, err := r.post(ctx, id)
	if err != nil {
		return model.RawMetrics{}, err
	}
	m := model.RawMetrics{Likes: p.Score, Comments: p.NumComments, Shares: p.NumCrossposts}
	if p.ViewCount != nil {
		m.Views = *p.ViewCount
	}
	return m, nil
}

func (r *Reddit) FetchInfo(ctx context.Context, contentID string) (model.ContentInfo, error) {
	p, err := r.post(ctx, contentID)
	if err != nil {
		return model.ContentInfo{}, err
	}
	sec := int64(p.CreatedUTC)
	return model.ContentInfo{Title: p.Title, PublishedAt: time.Unix(sec, 0).UTC()}, nil
}

func (r *Reddit) client() *httpClient { return r.c }

// TestConnection reads one post of the front page with the configured user agent.
func (r *Reddit) TestConnection(ctx context.Context) error {
	var out struct {
		Kind string `json:"kind"`
	}
	if err := r.c.getJSON(ctx, r.baseURL+"/r/popular.json?limit=1", nil, &out); err != nil {
		return fmt.Errorf("reddit connection test: %w", err)
	}
	return nil
}
