package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

func bundle(files map[string]string) *site.Bundle {
	return &site.Bundle{Files: files}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestWriteInPlaceKeepsUnrelatedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CNAME"), []byte("example.com"), 0o644))

	w := &Writer{Dir: dir}
	c, err := w.Write(bundle(map[string]string{
		"index.html":        "<html>v1</html>",
		"pillars/a.html":    "pillar",
		"articles/b-c.html": "article",
	}))
	require.NoError(t, err)
	c.Finalize()
	assert.Equal(t, 3, c.Files)
	assert.Equal(t, 28, c.Bytes)

	assert.Equal(t, "<html>v1</html>", mustRead(t, filepath.Join(dir, "index.html")))
	assert.Equal(t, "pillar", mustRead(t, filepath.Join(dir, "pillars", "a.html")))
	assert.Equal(t, "example.com", mustRead(t, filepath.Join(dir, "CNAME")))

	info, err := os.Stat(filepath.Join(dir, "pillars", "a.html"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteCleanReplacesPreviousSite(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "site")

	w := &Writer{Dir: dir, Clean: true}
	c, err := w.Write(bundle(map[string]string{"index.html": "v1", "pillars/old.html": "old"}))
	require.NoError(t, err)
	c.Finalize()
	c, err = w.Write(bundle(map[string]string{"index.html": "v2"}))
	require.NoError(t, err)
	c.Finalize()

	assert.Equal(t, "v2", mustRead(t, filepath.Join(dir, "index.html")))
	_, err = os.Stat(filepath.Join(dir, "pillars", "old.html"))
	assert.True(t, os.IsNotExist(err), "stale page survived a clean write")
	_, err = os.Stat(dir + "_stage")
	assert.True(t, os.IsNotExist(err), "staging directory left behind")
	_, err = os.Stat(dir + ".prev")
	assert.True(t, os.IsNotExist(err), "backup left behind after finalize")
}

func TestCleanRollbackRestoresPreviousSite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	w := &Writer{Dir: dir, Clean: true}

	c, err := w.Write(bundle(map[string]string{"index.html": "v1", "pillars/old.html": "old"}))
	require.NoError(t, err)
	c.Finalize()

	c, err = w.Write(bundle(map[string]string{"index.html": "v2"}))
	require.NoError(t, err)
	assert.Equal(t, "v2", mustRead(t, filepath.Join(dir, "index.html")))

	require.NoError(t, c.Rollback())
	assert.Equal(t, "v1", mustRead(t, filepath.Join(dir, "index.html")))
	assert.Equal(t, "old", mustRead(t, filepath.Join(dir, "pillars", "old.html")))
	_, err = os.Stat(dir + ".prev")
	assert.True(t, os.IsNotExist(err))

	// finalize after rollback keeps the restored site
	c.Finalize()
	assert.Equal(t, "v1", mustRead(t, filepath.Join(dir, "index.html")))
}

func TestCleanRollbackOfFirstWriteRemovesOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	c, err := (&Writer{Dir: dir, Clean: true}).Write(bundle(map[string]string{"index.html": "v1"}))
	require.NoError(t, err)

	require.NoError(t, c.Rollback())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestInPlaceRollbackRestoresFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("old index"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CNAME"), []byte("example.com"), 0o644))

	c, err := (&Writer{Dir: dir}).Write(bundle(map[string]string{
		"index.html":     "new index",
		"pillars/a.html": "pillar",
	}))
	require.NoError(t, err)
	require.NoError(t, c.Rollback())

	assert.Equal(t, "old index", mustRead(t, filepath.Join(dir, "index.html")))
	info, err := os.Stat(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, "example.com", mustRead(t, filepath.Join(dir, "CNAME")))
	_, err = os.Stat(filepath.Join(dir, "pillars"))
	assert.True(t, os.IsNotExist(err), "directory created by the write survived rollback")
}

func TestInPlaceFailedWriteIsUndone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("old"), 0o644))

	// paths are written in sorted order, so index.html is written before the bad path
	_, err := (&Writer{Dir: dir}).Write(bundle(map[string]string{"index.html": "new", "zz/../../escape.html": "bad"}))
	require.Error(t, err)
	assert.Equal(t, "old", mustRead(t, filepath.Join(dir, "index.html")))
}

func TestWriteRejectsTraversal(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "site")

	w := &Writer{Dir: dir, Clean: true}
	_, err := w.Write(bundle(map[string]string{"index.html": "ok", "../escape.html": "bad"}))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, statErr := os.Stat(filepath.Join(parent, "escape.html"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "failed clean write must not create the output directory")
}

func TestSafeJoin(t *testing.T) {
	cases := []struct {
		rel string
		ok  bool
	}{
		{"index.html", true},
		{"pillars/a.html", true},
		{"pillars/../index.html", true},
		{"../x", false},
		{"/etc/passwd", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := SafeJoin("/srv/site", tc.rel)
		if tc.ok {
			assert.NoError(t, err, tc.rel)
		} else {
			assert.Error(t, err, tc.rel)
		}
	}
}

func TestWriteRequiresDirectory(t *testing.T) {
	_, err := (&Writer{}).Write(bundle(map[string]string{"index.html": "x"}))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}
