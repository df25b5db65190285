package options

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
)

// ValidatePatterns checks that every pattern is a valid doublestar glob.
func ValidatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pat)) {
			return &errs.Error{
				Kind:  errs.Config,
				Op:    "match source files",
				Field: "files",
				Err:   fmt.Errorf(messages.OptionsInvalidGlobFmt, pat),
			}
		}
	}
	return nil
}

// MatchFiles expands patterns relative to srcDir and returns the matched regular
// files as sorted, slash-separated paths relative to srcDir. Anything under an
// exclude directory (the cache or output directory when they live inside srcDir)
// is skipped. Zero matches is a configuration error.
func MatchFiles(srcDir string, patterns []string, exclude ...string) ([]string, error) {
	if err := ValidatePatterns(patterns); err != nil {
		return nil, err
	}

	prefixes := excludePrefixes(srcDir, exclude)
	fsys := os.DirFS(srcDir)
	seen := map[string]struct{}{}
	var out []string
	for _, pat := range patterns {
		pattern := strings.TrimPrefix(filepath.ToSlash(pat), "./")
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, &errs.Error{
				Kind:  errs.Config,
				Op:    "match source files",
				Field: "files",
				Path:  srcDir,
				Err:   fmt.Errorf(messages.OptionsGlobFailedFmt, pat, srcDir, err),
			}
		}
		for _, m := range matches {
			if excluded(m, prefixes) {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, &errs.Error{
			Kind:  errs.Config,
			Op:    "match source files",
			Field: "files",
			Path:  srcDir,
			Err:   fmt.Errorf(messages.OptionsNoFilesMatchedFmt, srcDir, strings.Join(patterns, ", ")),
		}
	}
	sort.Strings(out)
	return out, nil
}

// excludePrefixes converts exclude dirs into slash paths relative to srcDir,
// dropping those outside it.
func excludePrefixes(srcDir string, exclude []string) []string {
	absSrc, err := filepath.Abs(srcDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, dir := range exclude {
		if dir == "" {
			continue
		}
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absSrc, absDir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel)+"/")
	}
	return out
}

func excluded(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
