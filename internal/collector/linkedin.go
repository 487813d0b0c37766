package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"contentpulse/internal/model"
)

// LinkedIn reads post social actions with a member access token.
type LinkedIn struct {
	baseURL     string
	accessToken string
	c           *httpClient
}

func NewLinkedIn(accessToken string) *LinkedIn {
	return &LinkedIn{baseURL: "https://api.linkedin.com/v2", accessToken: accessToken, c: newHTTPClient(model.PlatformLinkedIn)}
}

func (l *LinkedIn) Platform() model.Platform { return model.PlatformLinkedIn }

// activityURN turns an activity id into a URN; article slugs have none.
func activityURN(id string) (string, bool) {
	if strings.HasPrefix(id, "urn:li:") {
		return id, true
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return "urn:li:activity:" + id, id != ""
}

func (l *LinkedIn) client() *httpClient { return l.c }

func (l *LinkedIn) auth(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+l.accessToken)
	r.Header.Set("X-Restli-Protocol-Version", "2.0.0")
}

// TestConnection reads the token owner's profile.
func (l *LinkedIn) TestConnection(ctx context.Context) error {
	var out struct {
		ID string `json:"id"`
	}
	if err := l.c.getJSON(ctx, l.baseURL+"/me", l.auth, &out); err != nil {
		return fmt.Errorf("linkedin connection test: %w", err)
	}
	return nil
}

func (l *LinkedIn) FetchMetrics(ctx context.Context, item model.ContentItem) (model.RawMetrics, error) {
	id, err := queryID(item)
	if err != nil {
		return model.RawMetrics{}, err
	}
	urn, ok := activityURN(id)
	if !ok {
		return model.RawMetrics{}, fmt.Errorf("linkedin %s is not an activity: %w", id, ErrUnresolvedID)
	}
	var out struct {
		LikesSummary struct {
			TotalLikes int64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	if err := l.c.getJSON(ctx, l.baseURL+"/socialActions/"+url.PathEscape(urn), l.auth, &out); err != nil {
		return model.RawMetrics{}, err
	}
	return model.RawMetrics{
		Likes:    out.LikesSummary.TotalLikes,
		Comments: out.CommentsSummary.AggregatedTotalComments,
	}, nil
}
