// Package build holds version information injected at link time, e.g.
//
//	go build -ldflags "-X github.com/armadaproject/couponseed/internal/couponseed/build.GitCommit=$(git rev-parse HEAD)"
package build

import "runtime"

var (
	ReleaseVersion = "UNKNOWN"
	GitCommit      = "UNKNOWN"
	BuildTime      = "UNKNOWN"
	GoVersion      = runtime.Version()
)
