// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/draft-engine/internal/httputil"
	"github.com/pdiddy/draft-engine/pkg/types"
)

// Platform endpoints, relative to the configured base URL.
const (
	writePath  = "/apis/post/write"
	modifyPath = "/apis/post/modify"
)

// BlogClient posts to a Tistory-compatible blog API: form-encoded write
// requests authenticated by an access token, with numeric visibility
// codes.
type BlogClient struct {
	cfg         types.PublishConfig
	accessToken string
	client      *http.Client
}

// NewBlogClient builds the production publisher. The access token comes
// from the secrets directory, never the config file.
func NewBlogClient(cfg types.PublishConfig, accessToken string) *BlogClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BlogClient{
		cfg:         cfg,
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
	}
}

// Name returns the destination blog name.
func (b *BlogClient) Name() string {
	return b.cfg.BlogName
}

// visibilityCode maps a publication mode to the platform's numeric code.
func visibilityCode(v types.Visibility) (string, error) {
	switch v {
	case types.VisibilityDraft, "":
		return "0", nil
	case types.VisibilityScheduled:
		return "2", nil
	case types.VisibilityPublished:
		return "3", nil
	}
	return "", fmt.Errorf("unknown visibility %q", v)
}

type writeResponse struct {
	Result struct {
		Status string `json:"status"`
		PostID string `json:"postId"`
		URL    string `json:"url"`
	} `json:"tistory"`
}

// Publish sends the post to the platform's write endpoint. Rate limits
// and server errors retry with backoff inside DoWithRetry; whatever
// survives is classified into the pipeline error taxonomy.
func (b *BlogClient) Publish(ctx context.Context, post Post) (types.PublishResult, error) {
	form, err := b.postForm(post)
	if err != nil {
		return types.PublishResult{}, err
	}
	return b.send(ctx, writePath, form, post.Visibility)
}

// Update rewrites an existing post through the platform's modify
// endpoint, preserving its post id.
func (b *BlogClient) Update(ctx context.Context, postID string, post Post) (types.PublishResult, error) {
	if postID == "" {
		return types.PublishResult{}, &types.FatalError{Op: "publish", Err: errors.New("update requires a post id")}
	}
	form, err := b.postForm(post)
	if err != nil {
		return types.PublishResult{}, err
	}
	form.Set("postId", postID)
	return b.send(ctx, modifyPath, form, post.Visibility)
}

// postForm assembles the form fields shared by write and modify.
func (b *BlogClient) postForm(post Post) (url.Values, error) {
	if b.accessToken == "" {
		return nil, &types.FatalError{Op: "publish", Err: errors.New("no access token configured")}
	}
	code, err := visibilityCode(post.Visibility)
	if err != nil {
		return nil, &types.FatalError{Op: "publish", Err: err}
	}

	form := url.Values{
		"access_token": {b.accessToken},
		"output":       {"json"},
		"blogName":     {b.cfg.BlogName},
		"title":        {post.Title},
		"content":      {post.Body},
		"visibility":   {code},
		"slogan":       {post.Slug},
	}
	if len(post.Tags) > 0 {
		form.Set("tag", strings.Join(post.Tags, ","))
	}
	if b.cfg.Category != "" {
		form.Set("category", b.cfg.Category)
	}
	if post.Visibility == types.VisibilityScheduled && !post.PublishAt.IsZero() {
		form.Set("published", strconv.FormatInt(post.PublishAt.Unix(), 10))
	}
	if post.MetaDescription != "" {
		form.Set("summary", post.MetaDescription)
	}
	return form, nil
}

// send posts the form and decodes the platform response.
func (b *BlogClient) send(ctx context.Context, path string, form url.Values, visibility types.Visibility) (types.PublishResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return types.PublishResult{}, fmt.Errorf("building publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if b.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", b.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.cfg.Retry)
	if err != nil {
		if ctx.Err() != nil {
			return types.PublishResult{}, ctx.Err()
		}
		return types.PublishResult{}, &types.TransientError{Op: "publish", Err: err}
	}
	defer resp.Body.Close()

	if err := httputil.ClassifyResponse("publish", resp); err != nil {
		return types.PublishResult{}, err
	}

	var out writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.PublishResult{}, &types.FatalError{Op: "publish", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if out.Result.PostID == "" {
		return types.PublishResult{}, &types.FatalError{Op: "publish", Err: errors.New("response carries no post id")}
	}

	if visibility == "" {
		visibility = types.VisibilityDraft
	}
	return types.PublishResult{
		PostID:      out.Result.PostID,
		URL:         out.Result.URL,
		Visibility:  visibility,
		PublishedAt: time.Now().UTC(),
	}, nil
}
