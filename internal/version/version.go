package version

import "runtime/debug"

// Version is the release version, set at build time via -ldflags. When left
// at "dev" it falls back to the module version embedded by go install.
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
