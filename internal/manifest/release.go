// Package manifest fetches the published release manifest, resolves version
// aliases to concrete versions and validates flavor/platform/arch availability.
package manifest

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// ErrVersionNotFound and ErrUnsupported distinguish the two resolution failures.
var (
	ErrVersionNotFound = errors.New("version not found")
	ErrUnsupported     = errors.New("unsupported combination")
	ErrNoStable        = errors.New("no stable version")
)

// Default filename templates per flavor. The extension is appended per platform.
const (
	DefaultNormalTemplate = "nwjs-v{version}-{platform}-{arch}"
	DefaultSDKTemplate    = "nwjs-sdk-v{version}-{platform}-{arch}"
)

// Release describes one concrete version. It is immutable once built.
type Release struct {
	Version string
	Date    string
	Stable  bool

	available map[options.Flavor]map[string]struct{}
	templates map[options.Flavor]string
}

// Archive identifies one downloadable runtime archive.
type Archive struct {
	Version  string
	Flavor   options.Flavor
	Platform string
	Arch     string
	Filename string
}

// URL joins the archive location under base: base/v<version>/<filename>.
func (a Archive) URL(base string) string {
	return strings.TrimRight(base, "/") + "/v" + a.Version + "/" + a.Filename
}

// Targets lists the platform-arch pairs available for flavor, sorted.
func (r Release) Targets(flavor options.Flavor) []string {
	set := r.available[flavor]
	out := make([]string, 0, len(set))
	for target := range set {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// Flavors lists the flavors with at least one archive, sorted.
func (r Release) Flavors() []options.Flavor {
	out := make([]options.Flavor, 0, len(r.available))
	for flavor, set := range r.available {
		if len(set) > 0 {
			out = append(out, flavor)
		}
	}
	slices.Sort(out)
	return out
}

// Supports reports whether an archive exists for the tuple.
func (r Release) Supports(flavor options.Flavor, platform, arch string) bool {
	_, ok := r.available[flavor][platform+"-"+arch]
	return ok
}

// Archive validates the tuple against this release and returns its archive.
// An unavailable tuple is a resolution error wrapping ErrUnsupported that names it.
func (r Release) Archive(flavor options.Flavor, platform, arch string) (Archive, error) {
	if !r.Supports(flavor, platform, arch) {
		available := strings.Join(r.Targets(flavor), ", ")
		if available == "" {
			available = "none"
		}
		return Archive{}, &errs.Error{
			Kind:     errs.Resolution,
			Op:       "validate release",
			Version:  r.Version,
			Flavor:   string(flavor),
			Platform: platform,
			Arch:     arch,
			Err: fmt.Errorf("%w: "+messages.ManifestUnsupportedFmt,
				ErrUnsupported, flavor, platform, arch, r.Version, available),
		}
	}
	return Archive{
		Version:  r.Version,
		Flavor:   flavor,
		Platform: platform,
		Arch:     arch,
		Filename: r.filename(flavor, platform, arch),
	}, nil
}

func (r Release) filename(flavor options.Flavor, platform, arch string) string {
	tmpl := r.templates[flavor]
	if tmpl == "" {
		tmpl = defaultTemplate(flavor)
	}
	name := strings.NewReplacer(
		"{version}", r.Version,
		"{flavor}", string(flavor),
		"{platform}", platform,
		"{arch}", arch,
	).Replace(tmpl)
	if hasArchiveExt(name) {
		return name
	}
	return name + ArchiveExt(platform)
}

func defaultTemplate(flavor options.Flavor) string {
	if flavor == options.FlavorSDK {
		return DefaultSDKTemplate
	}
	return DefaultNormalTemplate
}

// ArchiveExt returns the archive extension upstream uses for platform.
func ArchiveExt(platform string) string {
	if platform == options.PlatformLinux {
		return ".tar.gz"
	}
	return ".zip"
}

func hasArchiveExt(name string) bool {
	for _, ext := range []string{".zip", ".tar.gz", ".tgz", ".tar.bz2", ".tar"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
