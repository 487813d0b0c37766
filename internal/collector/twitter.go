package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"contentpulse/internal/model"
)

// Twitter reads post public metrics from X API v2.
type Twitter struct {
	baseURL     string
	bearerToken string
	c           *httpClient
}

func NewTwitter(bearerToken string) *Twitter {
	return &Twitter{baseURL: "https://api.twitter.com/2", bearerToken: bearerToken, c: newHTTPClient(model.PlatformTwitter)}
}

func (t *Twitter) Platform() model.Platform { return model.PlatformTwitter }

type tweet struct {
	Data struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			RetweetCount    int64 `json:"retweet_count"`
			ReplyCount      int64 `json:"reply_count"`
			LikeCount       int64 `json:"like_count"`
			QuoteCount      int64 `json:"quote_count"`
			ImpressionCount int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (t *Twitter) get(ctx context.Context, id string) (tweet, error) {
	var out tweet
	u := t.baseURL + "/tweets/" + url.PathEscape(id) + "?tweet.fields=public_metrics,created_at"
	auth := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+t.bearerToken) }
	err := t.c.getJSON(ctx, u, auth, &out)
	return out, err
}

// FetchMetrics maps impressions to views, replies to comments and
// retweets plus quotes to shares.
func (t *Twitter) FetchMetrics(ctx context.Context, item model.ContentItem) (model.RawMetrics, error) {
	id, err := queryID(item)
	if err != nil {
		return model.RawMetrics{}, err
	}
	tw, err := t.get(ctx, id)
	if err != nil {
		return model.RawMetrics{}, err
	}
	pm := tw.Data.PublicMetrics
	return model.RawMetrics{
		Views:    pm.ImpressionCount,
		Likes:    pm.LikeCount,
		Comments: pm.ReplyCount,
		Shares:   pm.RetweetCount + pm.QuoteCount,
	}, nil
}

func (t *Twitter) FetchInfo(ctx context.Context, contentID string) (model.ContentInfo, error) {
	tw, err := t.get(ctx, contentID)
	if err != nil {
		return model.ContentInfo{}, err
	}
	title := []rune(tw.Data.Text)
	if len(title) > 80 {
		title = append(title[:77], []rune("...")...)
	}
	return model.ContentInfo{Title: string(title), PublishedAt: tw.Data.CreatedAt.UTC()}, nil
}

func (t *Twitter) client() *httpClient { return t.c }

// TestConnection looks up a well-known account with the bearer token.
func (t *Twitter) TestConnection(ctx context.Context) error {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	auth := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+t.bearerToken) }
	if err := t.c.getJSON(ctx, t.baseURL+"/users/by/username/XDevelopers", auth, &out); err != nil {
		return fmt.Errorf("x connection test: %w", err)
	}
	return nil
}
