package options

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/conn-castle/nwbuild/internal/errs"
	"github.com/conn-castle/nwbuild/internal/messages"
)

// ProjectManifestFile is the application's manifest file name.
const ProjectManifestFile = "package.json"

// OverrideField is the package.json field holding option overrides.
const OverrideField = "nwbuild"

// ProjectManifest is the application's package.json as far as nwbuild cares.
type ProjectManifest struct {
	Name    string
	Version string
	Main    string

	// Source identifies where the manifest was read from, for error messages.
	Source string

	fields map[string]json.RawMessage
}

// LoadProjectManifest reads package.json from dir.
func LoadProjectManifest(dir string) (ProjectManifest, error) {
	path := filepath.Join(dir, ProjectManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return ProjectManifest{}, &errs.Error{
			Kind: errs.Config,
			Op:   "load project manifest",
			Path: path,
			Err:  fmt.Errorf(messages.OptionsReadProjectManifestFmt, path, err),
		}
	}
	return ParseProjectManifest(data, path)
}

// ParseProjectManifest decodes package.json content. Field types are checked lazily
// by Validate and ParseOverride so the error names the offending field.
func ParseProjectManifest(data []byte, source string) (ProjectManifest, error) {
	trimmed := bytes.TrimSpace(data)
	if kind := jsonType(trimmed); kind != "object" {
		return ProjectManifest{}, &errs.Error{
			Kind: errs.Config,
			Op:   "load project manifest",
			Path: source,
			Err:  fmt.Errorf(messages.OptionsProjectManifestNotObjectFmt, source, kind),
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return ProjectManifest{}, &errs.Error{
			Kind: errs.Config,
			Op:   "load project manifest",
			Path: source,
			Err:  fmt.Errorf(messages.OptionsParseProjectManifestFmt, source, err),
		}
	}
	pm := ProjectManifest{Source: source, fields: fields}
	// Type problems surface from Validate; here we only pick up well-typed values.
	pm.Name, _ = stringField(fields, "name")
	pm.Main, _ = stringField(fields, "main")
	pm.Version, _ = stringField(fields, "version")
	return pm, nil
}

// Validate checks the mandatory name and main fields.
func (p ProjectManifest) Validate() error {
	for _, field := range []string{"name", "main"} {
		raw, ok := p.fields[field]
		if !ok {
			return &errs.Error{
				Kind:  errs.Config,
				Op:    "validate project manifest",
				Field: field,
				Path:  p.Source,
				Err:   fmt.Errorf(messages.OptionsMissingFieldFmt, field),
			}
		}
		value, ok := stringField(p.fields, field)
		if !ok {
			return &errs.Error{
				Kind:  errs.Config,
				Op:    "validate project manifest",
				Field: field,
				Path:  p.Source,
				Err:   fmt.Errorf(messages.OptionsFieldTypeFmt, field, "string", jsonType(raw)),
			}
		}
		if value == "" {
			return &errs.Error{
				Kind:  errs.Config,
				Op:    "validate project manifest",
				Field: field,
				Path:  p.Source,
				Err:   fmt.Errorf(messages.OptionsMissingFieldFmt, field),
			}
		}
	}
	if raw, ok := p.fields["version"]; ok {
		if _, ok := stringField(p.fields, "version"); !ok {
			return &errs.Error{
				Kind:  errs.Config,
				Op:    "validate project manifest",
				Field: "version",
				Path:  p.Source,
				Err:   fmt.Errorf(messages.OptionsFieldTypeFmt, "version", "string", jsonType(raw)),
			}
		}
	}
	return nil
}

// Override is the parsed nwbuild object. Nil fields were not declared.
type Override struct {
	SrcDir      *string
	Files       []string
	Mode        *string
	Version     *string
	Flavor      *string
	Platform    *string
	Arch        *string
	OutDir      *string
	CacheDir    *string
	DownloadURL *string
	ManifestURL *string
	Cache       *bool
	Zip         *bool
	Argv        []string
}

// ParseOverride decodes the nwbuild field. A missing field yields an empty Override;
// a field that is not an object, or an object with unknown or wrong-typed keys, is a
// configuration error naming the field and the type found.
func (p ProjectManifest) ParseOverride() (Override, error) {
	raw, ok := p.fields[OverrideField]
	if !ok {
		return Override{}, nil
	}
	if kind := jsonType(raw); kind != "object" {
		return Override{}, &errs.Error{
			Kind:  errs.Config,
			Op:    "parse override",
			Field: OverrideField,
			Path:  p.Source,
			Err:   fmt.Errorf(messages.OptionsOverrideTypeFmt, OverrideField, kind),
		}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Override{}, &errs.Error{
			Kind:  errs.Config,
			Op:    "parse override",
			Field: OverrideField,
			Path:  p.Source,
			Err:   fmt.Errorf(messages.OptionsOverrideInvalidFmt, OverrideField, err),
		}
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out Override
	for _, key := range keys {
		if err := out.set(key, fields[key]); err != nil {
			return Override{}, &errs.Error{
				Kind:  errs.Config,
				Op:    "parse override",
				Field: OverrideField + "." + key,
				Path:  p.Source,
				Err:   err,
			}
		}
	}
	return out, nil
}

var errUnknownOverrideKey = errors.New("unknown key")

func (o *Override) set(key string, raw json.RawMessage) error {
	field := OverrideField + "." + key
	strTarget := map[string]**string{
		"srcDir":      &o.SrcDir,
		"mode":        &o.Mode,
		"version":     &o.Version,
		"flavor":      &o.Flavor,
		"platform":    &o.Platform,
		"arch":        &o.Arch,
		"outDir":      &o.OutDir,
		"cacheDir":    &o.CacheDir,
		"downloadUrl": &o.DownloadURL,
		"manifestUrl": &o.ManifestURL,
	}
	if target, ok := strTarget[key]; ok {
		var v string
		if jsonType(raw) != "string" || json.Unmarshal(raw, &v) != nil {
			return fmt.Errorf(messages.OptionsOverrideFieldTypeFmt, field, "string", jsonType(raw))
		}
		*target = &v
		return nil
	}

	switch key {
	case "cache", "zip":
		var v bool
		if jsonType(raw) != "boolean" || json.Unmarshal(raw, &v) != nil {
			return fmt.Errorf(messages.OptionsOverrideFieldTypeFmt, field, "boolean", jsonType(raw))
		}
		if key == "cache" {
			o.Cache = &v
		} else {
			o.Zip = &v
		}
		return nil
	case "files":
		var one string
		if jsonType(raw) == "string" && json.Unmarshal(raw, &one) == nil {
			o.Files = []string{one}
			return nil
		}
		var many []string
		if jsonType(raw) != "array" || json.Unmarshal(raw, &many) != nil {
			return fmt.Errorf(messages.OptionsOverrideFieldTypeFmt, field, "string or array of strings", jsonType(raw))
		}
		o.Files = many
		return nil
	case "argv":
		var many []string
		if jsonType(raw) != "array" || json.Unmarshal(raw, &many) != nil {
			return fmt.Errorf(messages.OptionsOverrideFieldTypeFmt, field, "array of strings", jsonType(raw))
		}
		o.Argv = many
		return nil
	}
	return fmt.Errorf("%w %q", errUnknownOverrideKey, field)
}

// apply overwrites every field the override declares.
func (o Override) apply(u *UserOptions) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&u.SrcDir, o.SrcDir)
	setString(&u.Mode, o.Mode)
	setString(&u.Version, o.Version)
	setString(&u.Flavor, o.Flavor)
	setString(&u.Platform, o.Platform)
	setString(&u.Arch, o.Arch)
	setString(&u.OutDir, o.OutDir)
	setString(&u.CacheDir, o.CacheDir)
	setString(&u.DownloadURL, o.DownloadURL)
	setString(&u.ManifestURL, o.ManifestURL)
	if o.Files != nil {
		u.Files = o.Files
	}
	if o.Argv != nil {
		u.Argv = o.Argv
	}
	if o.Cache != nil {
		u.Cache = o.Cache
	}
	if o.Zip != nil {
		u.Zip = o.Zip
	}
}

func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok || jsonType(raw) != "string" {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// jsonType names the JSON type of raw by its first significant byte.
func jsonType(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "nothing"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
