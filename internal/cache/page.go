// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// page.go purges the site's full-page HTML cache after content is rewritten.
// The site's renderer stores each page under <prefix><slug>; a rewritten post
// drops its own entry, while menu and widget changes drop every entry since
// they appear on all pages.
package cache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultPagePrefix is the key prefix the site uses for cached pages.
const DefaultPagePrefix = "page:"

// PageCache invalidates cached pages in Valkey.
type PageCache struct {
	client *redis.Client
	prefix string
}

// NewPageCache creates a page cache purger for keys starting with prefix.
func NewPageCache(client *redis.Client, prefix string) *PageCache {
	if prefix == "" {
		prefix = DefaultPagePrefix
	}
	return &PageCache{client: client, prefix: prefix}
}

// Key returns the cache key for a content slug.
func (pc *PageCache) Key(slug string) string {
	return pc.prefix + slug
}

// InvalidatePage removes a single page from the cache by its slug.
func (pc *PageCache) InvalidatePage(ctx context.Context, slug string) {
	if err := pc.client.Del(ctx, pc.Key(slug)).Err(); err != nil {
		slog.Warn("page cache invalidate error", "slug", slug, "error", err)
		return
	}
	slog.Debug("page cache invalidated", "slug", slug)
}

// InvalidateAll removes all cached pages by scanning for the prefix.
func (pc *PageCache) InvalidateAll(ctx context.Context) {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := pc.client.Scan(ctx, cursor, pc.prefix+"*", 100).Result()
		if err != nil {
			slog.Warn("page cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := pc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("page cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("page cache fully cleared", "deleted", deleted)
	}
}
