package config

// Build metadata injected at link time via:
//
//	go build -ldflags "-X agentdesk/internal/config.version=... \
//	  -X agentdesk/internal/config.commit=... \
//	  -X agentdesk/internal/config.buildTime=..."
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// buildInfo returns the link-time build metadata.
func buildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
