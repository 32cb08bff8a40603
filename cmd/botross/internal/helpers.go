package internal

import (
	"runtime"
	"runtime/debug"
)

// version is overridden at link time with -ldflags "-X ...internal.version=v1.2.3".
var version = ""

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version  string
	Revision string
	Modified bool
	Go       string
}

// ReadBuildInfo prefers the link-time version and falls back to what the
// Go toolchain stamped into the binary.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{Version: version, Go: runtime.Version()}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		if info.Version == "" {
			info.Version = "dev"
		}
		return info
	}
	return fromDebug(info, bi)
}

func fromDebug(info BuildInfo, bi *debug.BuildInfo) BuildInfo {
	if info.Version == "" {
		info.Version = bi.Main.Version
	}
	if info.Version == "" || info.Version == "(devel)" {
		info.Version = "dev"
	}
	if bi.GoVersion != "" {
		info.Go = bi.GoVersion
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// Fields renders the build info for a log line.
func (b BuildInfo) Fields() map[string]any {
	f := map[string]any{
		"version": b.Version,
		"go":      b.Go,
	}
	if b.Revision != "" {
		rev := b.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if b.Modified {
			rev += "+dirty"
		}
		f["revision"] = rev
	}
	return f
}
