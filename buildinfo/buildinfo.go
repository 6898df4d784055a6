// Package buildinfo reports how the running binary was built, so a report's
// log records which version of the tool produced it.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

type BuildInfo struct {
	Package    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (b BuildInfo) String() string {
	if b.Commit == "" {
		return fmt.Sprintf("%s built with %s (no VCS information)", b.Package, b.GoVersion)
	}

	mod := ""
	if b.Modified {
		mod = ", with local modifications"
	}
	return fmt.Sprintf("%s built with %s at commit %s (%s)%s", b.Package, b.GoVersion, b.Commit, b.CommitTime, mod)
}

func Get() BuildInfo {
	out := BuildInfo{}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.Package = bi.Path
	out.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}
