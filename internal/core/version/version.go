// Package version reports the collector build stamped in at link time
package version

// BuildInfo is served by the meta endpoints and logged at startup
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Service names the binary; cmd packages override it with SetService
var service = "collector-api"

// Info returns the current build
// -ldflags "-X 'campaigncollector/internal/core/version.version=v0.3.0' -X 'campaigncollector/internal/core/version.commit=abcd'"
func Info() BuildInfo {
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// SetService renames the reporting binary
func SetService(name string) {
	if name != "" {
		service = name
	}
}

// UserAgent is sent on outbound lead deliveries
func UserAgent() string {
	return service + "/" + version
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
