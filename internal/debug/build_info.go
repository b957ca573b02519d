package debug

import (
	"runtime/debug"
	"strings"
)

// BuildInfo identifies the binary, fields are empty when the info is not embedded.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	// vcs.* build settings as "key=value"
	VCS string `json:"vcs,omitempty" yaml:"vcs,omitempty"`
}

func ReadBuildInfo() BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return BuildInfo{}
	}
	var vcsData []string
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			vcsData = append(vcsData, s.Key+"="+s.Value)
		}
	}
	return BuildInfo{
		Version:   info.Main.Version,
		GoVersion: info.GoVersion,
		VCS:       strings.Join(vcsData, " "),
	}
}

func (bi BuildInfo) String() string {
	s := bi.Version
	if s == "" {
		s = "(unknown version)"
	}
	if bi.GoVersion != "" {
		s += " " + bi.GoVersion
	}
	if bi.VCS != "" {
		s += " " + bi.VCS
	}
	return s
}
