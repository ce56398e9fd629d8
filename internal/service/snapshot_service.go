package service

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lromeral/sitechat/internal/ai"
	"github.com/lromeral/sitechat/internal/model"
	"github.com/lromeral/sitechat/internal/repo"
)

const (
	snapshotCacheKey   = "site_overview"
	snapshotPostLimit  = 20
	snapshotPostChars  = 200
	snapshotTotalChars = 8000
)

type SnapshotSource interface {
	ListRecentPosts(ctx context.Context, limit int) ([]model.Post, error)
}

type OptionGetter interface {
	Get(ctx context.Context, name string) (string, error)
}

// SnapshotService builds a plain-text overview of the site's recent
// content, cached hourly. It is the retrieval substitute when no embedding
// provider is configured.
type SnapshotService struct {
	content SnapshotSource
	options OptionGetter
	cache   *expirable.LRU[string, string]
}

func NewSnapshotService(content SnapshotSource, options OptionGetter) *SnapshotService {
	return &SnapshotService{
		content: content,
		options: options,
		cache:   expirable.NewLRU[string, string](4, nil, time.Hour),
	}
}

func (s *SnapshotService) SiteOverview(ctx context.Context) (string, error) {
	if cached, ok := s.cache.Get(snapshotCacheKey); ok {
		return cached, nil
	}
	overview, err := s.build(ctx)
	if err != nil {
		return "", err
	}
	s.cache.Add(snapshotCacheKey, overview)
	logutil.GetLogger(ctx).Info("site snapshot rebuilt", zap.Int("chars", len(overview)))
	return overview, nil
}

func (s *SnapshotService) build(ctx context.Context) (string, error) {
	var sb strings.Builder
	if s.options != nil {
		name, err := s.options.Get(ctx, repo.OptionSiteName)
		if err == nil && name != "" {
			sb.WriteString("Sitio: " + name + "\n")
		}
		tagline, err := s.options.Get(ctx, repo.OptionSiteTagline)
		if err == nil && tagline != "" {
			sb.WriteString(tagline + "\n")
		}
	}
	posts, err := s.content.ListRecentPosts(ctx, snapshotPostLimit)
	if err != nil {
		return "", err
	}
	for _, post := range posts {
		if sb.Len() >= snapshotTotalChars {
			break
		}
		body := post.Excerpt
		if body == "" {
			body = post.Content
		}
		body = truncateRunes(ai.StripMarkup(body), snapshotPostChars)
		sb.WriteString("\n" + post.Title)
		if body != "" {
			sb.WriteString(": " + body)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
