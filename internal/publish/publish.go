// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publish delivers finished posts to the blog platform.
// Implements: prd005-publishing (R1);
//
//	docs/ARCHITECTURE § Capabilities.
package publish

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/draft-engine/pkg/types"
)

// Post is one finished piece ready for the platform.
type Post struct {
	// Title is the post title.
	Title string

	// Slug is the URL slug requested from the platform.
	Slug string

	// Body is the full Markdown content.
	Body string

	// MetaDescription is the search snippet text.
	MetaDescription string

	// Tags are the platform tags.
	Tags []string

	// Visibility is the requested publication mode.
	Visibility types.Visibility

	// PublishAt is the scheduled publication time; used only when
	// Visibility is scheduled.
	PublishAt time.Time
}

// Publisher delivers one post to its destination. The production
// implementation is BlogClient; DryRun substitutes for it when no
// credentials are configured or --dry-run is set.
type Publisher interface {
	// Name identifies the destination for logs.
	Name() string

	// Publish delivers the post and returns the platform's identifiers.
	Publish(ctx context.Context, post Post) (types.PublishResult, error)

	// Update rewrites an already-published post in place, keeping its
	// platform identity. Used to promote visibility or push edits.
	Update(ctx context.Context, postID string, post Post) (types.PublishResult, error)
}

// DryRun is a Publisher that prints the post instead of delivering it
// and returns a synthetic result. Runs stay fully exercisable without
// platform credentials.
type DryRun struct {
	W io.Writer
}

// Name returns the dry-run destination label.
func (d *DryRun) Name() string { return "dry-run" }

// Publish prints a summary of what would have been posted.
func (d *DryRun) Publish(_ context.Context, post Post) (types.PublishResult, error) {
	fmt.Fprintf(d.W, "dry-run: would publish %q (%d chars, visibility %s, slug %s)\n",
		post.Title, len(post.Body), post.Visibility, post.Slug)
	return types.PublishResult{
		PostID:      "dry-run",
		URL:         "",
		Visibility:  post.Visibility,
		PublishedAt: time.Now().UTC(),
	}, nil
}

// Update prints a summary of what would have been rewritten.
func (d *DryRun) Update(_ context.Context, postID string, post Post) (types.PublishResult, error) {
	fmt.Fprintf(d.W, "dry-run: would update post %s %q (visibility %s)\n",
		postID, post.Title, post.Visibility)
	return types.PublishResult{
		PostID:      postID,
		URL:         "",
		Visibility:  post.Visibility,
		PublishedAt: time.Now().UTC(),
	}, nil
}
