package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contentpulse/internal/model"
)

// ServiceNow reads knowledge articles through the Table API.
type ServiceNow struct {
	instance string
	username string
	password string
	c        *httpClient
}

func NewServiceNow(instance, username, password string) *ServiceNow {
	return &ServiceNow{
		instance: strings.TrimRight(instance, "/"),
		username: username,
		password: password,
		c:        newHTTPClient(model.PlatformServiceNow),
	}
}

func (s *ServiceNow) Platform() model.Platform { return model.PlatformServiceNow }

type serviceNowArticle struct {
	SysViewCount     string `json:"sys_view_count"`
	ShortDescription string `json:"short_description"`
	Published        string `json:"published"`
}

func (s *ServiceNow) article(ctx context.Context, id string) (serviceNowArticle, error) {
	var out struct {
		Result []serviceNowArticle `json:"result"`
	}
	q := url.Values{
		"sysparm_query":  {"number=" + id + "^ORsys_id=" + id},
		"sysparm_fields": {"sys_view_count,short_description,published"},
		"sysparm_limit":  {"1"},
	}
	auth := func(r *http.Request) { r.SetBasicAuth(s.username, s.password) }
	if err := s.c.getJSON(ctx, s.instance+"/api/now/table/kb_knowledge?"+q.Encode(), auth, &out); err != nil {
		return serviceNowArticle{}, err
	}
	if len(out.Result) == 0 {
		return serviceNowArticle{}, fmt.Errorf("servicenow article %s: %w", id, model.ErrNotFound)
	}
	return out.Result[0], nil
}

// FetchMetrics reports the article view count; the Table API has no likes or comments.
func (s *ServiceNow) FetchMetrics(ctx context.Context, item model.ContentItem) (model.RawMetrics, error) {
	id, err := queryID(item)
	if err != nil {
		return model.RawMetrics{}, err
	}
	a, err := s.article(ctx, id)
	if err != nil {
		return model.RawMetrics{}, err
	}
	return model.RawMetrics{Views: atoi64(a.SysViewCount)}, nil
}

func (s *ServiceNow) FetchInfo(ctx context.Context, contentID string) (model.ContentInfo, error) {
	a, err := s.article(ctx, contentID)
	if err != nil {
		return model.ContentInfo{}, err
	}
	info := model.ContentInfo{Title: a.ShortDescription}
	if t, err := time.Parse("2006-01-02", a.Published); err == nil {
		info.PublishedAt = t
	}
	return info, nil
}

func (s *ServiceNow) client() *httpClient { return s.c }

// TestConnection reads one knowledge record to check instance and login.
func (s *ServiceNow) TestConnection(ctx context.Context) error {
	var out struct {
		Result []struct {
			SysID string `json:"sys_id"`
		} `json:"result"`
	}
	q := url.Values{"sysparm_fields": {"sys_id"}, "sysparm_limit": {"1"}}
	auth := func(r *http.Request) { r.SetBasicAuth(s.username, s.password) }
	if err := s.c.getJSON(ctx, s.instance+"/api/now/table/kb_knowledge?"+q.Encode(), auth, &out); err != nil {
		return fmt.Errorf("servicenow connection test: %w", err)
	}
	return nil
}
