package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lromeral/sitechat/internal/model"
	"github.com/lromeral/sitechat/internal/repo"
)

type snapshotContent struct {
	posts []model.Post
	calls int
}

func (s *snapshotContent) ListRecentPosts(ctx context.Context, limit int) ([]model.Post, error) {
	s.calls++
	return s.posts, nil
}

func TestSiteOverview_BuildsAndCaches(t *testing.T) {
	content := &snapshotContent{posts: []model.Post{
		{ID: 1, Title: "Envíos", Content: "<p>Hacemos envíos a <b>todo el país</b>.</p>"},
		{ID: 2, Title: "Horario", Excerpt: "Lunes a viernes de 9 a 18."},
	}}
	options := &fakeOptions{values: map[string]string{
		repo.OptionSiteName:    "Tienda Demo",
		repo.OptionSiteTagline: "Instrumentos desde 1990",
	}}
	svc := NewSnapshotService(content, options)

	overview, err := svc.SiteOverview(context.Background())
	require.NoError(t, err)
	require.Contains(t, overview, "Sitio: Tienda Demo")
	require.Contains(t, overview, "Instrumentos desde 1990")
	require.Contains(t, overview, "Envíos: Hacemos envíos a")
	require.Contains(t, overview, "todo el país")
	require.Contains(t, overview, "Horario: Lunes a viernes de 9 a 18.")
	require.NotContains(t, overview, "<p>")

	_, err = svc.SiteOverview(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, content.calls)
}

func TestSiteOverview_TruncatesLongPosts(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "palabra "
	}
	content := &snapshotContent{posts: []model.Post{{ID: 1, Title: "Largo", Content: long}}}
	svc := NewSnapshotService(content, &fakeOptions{values: map[string]string{}})

	overview, err := svc.SiteOverview(context.Background())
	require.NoError(t, err)
	require.Contains(t, overview, "...")
	require.Less(t, len(overview), len(long))
}
