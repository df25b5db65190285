package options

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conn-castle/nwbuild/internal/errs"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0o644))
	}
}

func TestMatchFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "package.json", "index.html", "js/app.js", "cache/nwjs/nw", "out/linux-x64/nw")

	got, err := MatchFiles(root, []string{"**/*"}, filepath.Join(root, "cache"), filepath.Join(root, "out"))
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html", "js/app.js", "package.json"}, got)
}

func TestMatchFilesDeduplicatesAcrossPatterns(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "package.json", "js/app.js")

	got, err := MatchFiles(root, []string{"./js/*.js", "**/*.js", "package.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"js/app.js", "package.json"}, got)
}

func TestMatchFilesNoMatches(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "package.json")

	_, err := MatchFiles(root, []string{"src/**/*.ts"})
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.Config, e.Kind)
	assert.Equal(t, "files", e.Field)
}

func TestMatchFilesInvalidPattern(t *testing.T) {
	_, err := MatchFiles(t.TempDir(), []string{"src/[unclosed"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Config))
	assert.Contains(t, err.Error(), "invalid glob pattern")
}
