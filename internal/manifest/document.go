package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	goversion "github.com/hashicorp/go-version"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

type document struct {
	Latest   string         `json:"latest"`
	Stable   string         `json:"stable"`
	Versions []versionEntry `json:"versions"`
}

type versionEntry struct {
	Version   string            `json:"version"`
	Date      string            `json:"date"`
	Stable    bool              `json:"stable"`
	Files     json.RawMessage   `json:"files"`
	Flavors   []string          `json:"flavors"`
	Templates map[string]string `json:"templates"`
}

// Manifest is the parsed release manifest.
type Manifest struct {
	Source string

	releases map[string]Release
	// ordered holds versions newest first; unparseable versions are left out.
	ordered []string
}

// Parse decodes a manifest document. source names it in error messages.
func Parse(data []byte, source string) (*Manifest, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(source, fmt.Errorf(messages.ManifestDecodeFailedFmt, source, err))
	}
	if len(doc.Versions) == 0 {
		return nil, malformed(source, fmt.Errorf(messages.ManifestNoVersions))
	}

	stablePointer := normalize(doc.Stable)
	m := &Manifest{Source: source, releases: make(map[string]Release, len(doc.Versions))}
	type ranked struct {
		name string
		ver  *goversion.Version
	}
	var sortable []ranked
	for _, entry := range doc.Versions {
		name := normalize(entry.Version)
		if name == "" {
			continue
		}
		available, err := entry.availability()
		if err != nil {
			return nil, malformed(source, err)
		}
		rel := Release{
			Version:   name,
			Date:      entry.Date,
			Stable:    entry.Stable || name == stablePointer,
			available: available,
			templates: map[options.Flavor]string{},
		}
		for flavor, tmpl := range entry.Templates {
			rel.templates[options.Flavor(flavor)] = tmpl
		}
		m.releases[name] = rel
		if v, err := goversion.NewVersion(name); err == nil {
			sortable = append(sortable, ranked{name: name, ver: v})
		}
	}

	sort.SliceStable(sortable, func(i, j int) bool {
		return sortable[i].ver.GreaterThan(sortable[j].ver)
	})
	for _, r := range sortable {
		m.ordered = append(m.ordered, r.name)
	}
	return m, nil
}

func (e versionEntry) availability() (map[options.Flavor]map[string]struct{}, error) {
	out := map[options.Flavor]map[string]struct{}{}
	add := func(flavor options.Flavor, targets []string) {
		set, ok := out[flavor]
		if !ok {
			set = map[string]struct{}{}
			out[flavor] = set
		}
		for _, t := range targets {
			set[strings.TrimSpace(t)] = struct{}{}
		}
	}

	trimmed := strings.TrimSpace(string(e.Files))
	switch {
	case trimmed == "" || trimmed == "null":
		return out, nil
	case strings.HasPrefix(trimmed, "["):
		// Upstream shape: a flat target list shared by every listed flavor.
		var targets []string
		if err := json.Unmarshal(e.Files, &targets); err != nil {
			return nil, fmt.Errorf(messages.ManifestInvalidFilesFmt, e.Version)
		}
		flavors := e.Flavors
		if len(flavors) == 0 {
			flavors = []string{string(options.FlavorNormal)}
		}
		for _, f := range flavors {
			add(options.Flavor(f), targets)
		}
	case strings.HasPrefix(trimmed, "{"):
		var byFlavor map[string][]string
		if err := json.Unmarshal(e.Files, &byFlavor); err != nil {
			return nil, fmt.Errorf(messages.ManifestInvalidFilesFmt, e.Version)
		}
		for f, targets := range byFlavor {
			add(options.Flavor(f), targets)
		}
	default:
		return nil, fmt.Errorf(messages.ManifestInvalidFilesFmt, e.Version)
	}
	return out, nil
}

// Releases returns every release with a parseable version, newest first.
func (m *Manifest) Releases() []Release {
	out := make([]Release, 0, len(m.ordered))
	for _, name := range m.ordered {
		out = append(out, m.releases[name])
	}
	return out
}

// Lookup finds a concrete version. A leading "v" is ignored.
func (m *Manifest) Lookup(v string) (Release, bool) {
	rel, ok := m.releases[normalize(v)]
	return rel, ok
}

// Latest returns the newest listed version, regardless of which flavors it ships.
func (m *Manifest) Latest() (Release, error) {
	if len(m.ordered) == 0 {
		return Release{}, notFound(m.Source, options.VersionLatest)
	}
	return m.releases[m.ordered[0]], nil
}

// Stable returns the newest version flagged stable.
func (m *Manifest) Stable() (Release, error) {
	for _, name := range m.ordered {
		if rel := m.releases[name]; rel.Stable {
			return rel, nil
		}
	}
	return Release{}, &errs.Error{
		Kind:    errs.Resolution,
		Op:      "resolve version",
		Version: options.VersionStable,
		URL:     m.Source,
		Err:     fmt.Errorf("%w: "+messages.ManifestNoStableVersionFmt, ErrNoStable, m.Source),
	}
}

// Resolve maps a version specifier (alias or concrete) to a release.
// Flavor availability is not considered here; see Release.Archive.
func (m *Manifest) Resolve(spec string) (Release, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case options.VersionLatest:
		return m.Latest()
	case options.VersionStable:
		return m.Stable()
	}
	rel, ok := m.Lookup(spec)
	if !ok {
		return Release{}, notFound(m.Source, normalize(spec))
	}
	return rel, nil
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

func notFound(source, version string) error {
	return &errs.Error{
		Kind:    errs.Resolution,
		Op:      "resolve version",
		Version: version,
		URL:     source,
		Err:     fmt.Errorf("%w: "+messages.ManifestVersionNotFoundFmt, ErrVersionNotFound, version, source),
	}
}

func malformed(source string, err error) error {
	return &errs.Error{Kind: errs.Resolution, Op: "parse manifest", URL: source, Err: err}
}
