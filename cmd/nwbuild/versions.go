package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/conn-castle/nwbuild/internal/manifest"
	"github.com/conn-castle/nwbuild/internal/messages"
	"github.com/conn-castle/nwbuild/internal/options"
)

// versionInfo is one release as printed by `nwbuild versions`.
type versionInfo struct {
	Version string              `json:"version"`
	Date    string              `json:"date,omitempty"`
	Stable  bool                `json:"stable"`
	Targets map[string][]string `json:"targets"`
}

func newVersionsCmd(flags *rootFlags) *cobra.Command {
	var all, outputJSON bool
	limit := 10
	cmd := &cobra.Command{
		Use:   messages.VersionsUse,
		Short: messages.VersionsShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := flags.load(cmd)
			if err != nil {
				return err
			}
			opts, err := inv.resolveOptions()
			if err != nil {
				return err
			}
			m, err := inv.runner(cmd).Manifest(cmd.Context(), opts)
			if err != nil {
				return err
			}
			releases := m.Releases()
			if limit > 0 && len(releases) > limit {
				releases = releases[:limit]
			}
			infos := make([]versionInfo, 0, len(releases))
			for _, rel := range releases {
				infos = append(infos, describeRelease(rel))
			}
			if outputJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(infos)
			}
			return renderVersions(cmd.OutOrStdout(), infos, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, messages.VersionsFlagAll)
	cmd.Flags().BoolVar(&outputJSON, "json", false, messages.VersionsFlagJSON)
	cmd.Flags().IntVar(&limit, "limit", limit, messages.VersionsFlagLimit)
	return cmd
}

func describeRelease(rel manifest.Release) versionInfo {
	info := versionInfo{
		Version: rel.Version,
		Date:    rel.Date,
		Stable:  rel.Stable,
		Targets: map[string][]string{},
	}
	for _, flavor := range rel.Flavors() {
		info.Targets[string(flavor)] = rel.Targets(flavor)
	}
	return info
}

func renderVersions(out io.Writer, infos []versionInfo, all bool) error {
	if _, err := fmt.Fprintf(out, messages.VersionsRowFmt, "VERSION", "DATE", "STABLE", "FLAVORS"); err != nil {
		return err
	}
	for _, info := range infos {
		stable := ""
		if info.Stable {
			stable = "yes"
		}
		var cols []string
		for _, flavor := range []options.Flavor{options.FlavorNormal, options.FlavorSDK} {
			targets, ok := info.Targets[string(flavor)]
			if !ok {
				continue
			}
			if all {
				cols = append(cols, string(flavor)+": "+strings.Join(targets, ","))
			} else {
				cols = append(cols, string(flavor))
			}
		}
		sep := ", "
		if all {
			sep = "; "
		}
		if _, err := fmt.Fprintf(out, messages.VersionsRowFmt, info.Version, info.Date, stable, strings.Join(cols, sep)); err != nil {
			return err
		}
	}
	return nil
}
