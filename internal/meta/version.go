package meta

import (
	"fmt"
	"runtime"
	"strings"
)

// Info describes the build context info for a cmdmessenger binary.
//
// It encapsulates a bunch of information that's included at build time
// by the Go linker. See the vars below for more information
//
type Info struct {
	Version   string
	Build     string
	Branch    string
	BuildTime string
	Platform  string
	GoVersion string
	GoTag     string
}

// These will be filled in using the linker -X flag
var (
	// Version as an arbitrary string
	Version string

	// Build is the Git sha from when we are building
	Build string

	// Branch is the Git branch that we are building from
	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	// Go Tag is the Go build tags. See the following references for more info.
	//
	// * https://golang.org/pkg/go/build/#hdr-Build_Constraints
	//
	GoTag string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   orUnknown(Version, "dev"),
		Build:     orUnknown(Build, "unknown"),
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		GoTag:     GoTag,
		Platform:  platform,
	}
}

// String renders the info on one line, leaving out anything that wasn't set.
func (i Info) String() string {
	parts := []string{i.Version, "(" + i.Build + ")"}

	if i.Branch != "" {
		parts = append(parts, "branch "+i.Branch)
	}
	if i.BuildTime != "" {
		parts = append(parts, "built "+i.BuildTime)
	}
	if i.GoTag != "" {
		parts = append(parts, "tags "+i.GoTag)
	}

	parts = append(parts, i.GoVersion, i.Platform)

	return strings.Join(parts, " ")
}

func orUnknown(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
