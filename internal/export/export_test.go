package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/frontmatter"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

func content() *site.Content {
	return &site.Content{
		Keyword: "home composting",
		Pillars: []site.PillarPage{{
			PillarTopic: site.PillarTopic{Title: "Composting Basics", Slug: "composting-basics", Description: "Start here", FocusKeyword: "compost basics"},
			Body:        "# Composting Basics\n\nIntro.",
			Clusters: []site.ClusterTopic{
				{Title: "Greens vs Browns", Slug: "greens-vs-browns"},
				{Title: "Bin Types", Slug: "bin-types"},
			},
		}},
		Articles: []site.ClusterArticle{
			{ClusterTopic: site.ClusterTopic{Title: "Greens vs Browns", Slug: "greens-vs-browns", Keyword: "greens", Description: "Balance"}, Body: "# Greens\n\nText.", PillarSlug: "composting-basics"},
			{ClusterTopic: site.ClusterTopic{Title: "Bin Types", Slug: "bin-types", Keyword: "bins", Description: "Which bin"}, Body: "# Bin Types\n\nSoon.", PillarSlug: "composting-basics", IsPlaceholder: true},
		},
	}
}

func TestExportLayoutAndFields(t *testing.T) {
	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	files, err := (&Exporter{Now: day}).Export(content())
	require.NoError(t, err)
	require.Len(t, files, 3)

	pillar, ok := files["content/pillars/composting-basics.md"]
	require.True(t, ok)
	fields, body, err := frontmatter.Parse([]byte(pillar))
	require.NoError(t, err)
	assert.Equal(t, "Composting Basics", fields["title"])
	assert.Equal(t, "pillar", fields["type"])
	assert.Equal(t, []any{"greens-vs-browns", "bin-types"}, fields["articles"])
	assert.Equal(t, "2026-03-14", fields[frontmatter.FieldLastmod])
	assert.NotEmpty(t, fields[frontmatter.FieldUID])
	assert.NotEmpty(t, fields[frontmatter.FieldFingerprint])
	assert.Equal(t, "# Composting Basics\n\nIntro.\n", string(body))

	placeholder, _, err := frontmatter.Parse([]byte(files["content/articles/bin-types.md"]))
	require.NoError(t, err)
	assert.Equal(t, true, placeholder["placeholder"])
	assert.Equal(t, "composting-basics", placeholder["pillar"])
}

func TestExportKeepsIdentityAcrossRuns(t *testing.T) {
	prevDir := t.TempDir()
	first := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	files, err := (&Exporter{Now: first}).Export(content())
	require.NoError(t, err)
	for rel, doc := range files {
		full := filepath.Join(prevDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(doc), 0o644))
	}

	changed := content()
	changed.Articles[0].Body = "# Greens\n\nRewritten."
	later := first.AddDate(0, 0, 10)
	again, err := (&Exporter{PreviousDir: prevDir, Now: later}).Export(changed)
	require.NoError(t, err)

	oldPillar, _, _ := frontmatter.Parse([]byte(files["content/pillars/composting-basics.md"]))
	newPillar, _, _ := frontmatter.Parse([]byte(again["content/pillars/composting-basics.md"]))
	assert.Equal(t, oldPillar[frontmatter.FieldUID], newPillar[frontmatter.FieldUID])
	assert.Equal(t, "2026-03-01", newPillar[frontmatter.FieldLastmod], "unchanged page keeps lastmod")

	newArticle, _, _ := frontmatter.Parse([]byte(again["content/articles/greens-vs-browns.md"]))
	assert.Equal(t, "2026-03-11", newArticle[frontmatter.FieldLastmod], "changed page moves lastmod")
}

func TestExportNilContent(t *testing.T) {
	_, err := (&Exporter{}).Export(nil)
	require.Error(t, err)
}
