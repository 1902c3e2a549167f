package version

import (
	"fmt"
	"runtime"
)

// Build metadata, set with -ldflags "-X trendwatch/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build metadata as printed by the version command.
func String() string {
	return fmt.Sprintf("trendwatch %s\ncommit: %s\nbuilt: %s\ngo: %s %s/%s\n",
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
