// Package constants holds build defaults, file locations and CLI messages
// shared by the agentpool commands.
package constants

// Build information used when the linker does not set it.
const (
	DefaultVersion   = "0.1.0-dev"
	DefaultBuildTime = "unknown"
	DefaultGitCommit = "unknown"
	DefaultGoVersion = "unknown"
)
