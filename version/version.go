package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"

	"github.com/spuro/spuro/errors"
)

// Build information. These variables are set at build time via ldflags.
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// MinClientVersion is the oldest client release the server still speaks to.
const MinClientVersion = "0.1.0"

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	if i.Version != "dev" {
		return fmt.Sprintf("spuro %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
	}
	return fmt.Sprintf("spuro dev (commit %s, built %s)", i.CommitHash, i.BuildTime)
}

// Short returns a short version string with just the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// CheckClientCompatible rejects clients older than MinClientVersion.
// Untagged development builds ("dev") always pass.
func CheckClientCompatible(clientVersion string) error {
	if clientVersion == "" || clientVersion == "dev" {
		return nil
	}
	v, err := semver.NewVersion(clientVersion)
	if err != nil {
		return errors.NewInvalidInputf("malformed client version %q", clientVersion)
	}
	min := semver.MustParse(MinClientVersion)
	if v.LessThan(min) {
		return errors.NewInvalidInputf("client version %s is older than minimum supported %s", clientVersion, MinClientVersion)
	}
	return nil
}
