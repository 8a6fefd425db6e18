/*
Package log provides structured logging for the ssh-lab provisioner using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-, instance-, and run-scoped child loggers and configurable log
levels. All logs include timestamps and support filtering by severity level.

# Usage

Initializing the Logger:

	import "github.com/manzolo/qlab-plugin-ssh-lab/pkg/log"

	// Console output (default for the CLI)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Component Loggers:

	imageLog := log.WithComponent("image-cache")
	imageLog.Info().Str("url", url).Msg("Downloading base image")

	instLog := log.WithInstance("sshserver")
	instLog.Info().Int("ssh_port", 2222).Msg("VM launched")

Structured Logging:

	log.Logger.Error().
		Err(err).
		Str("path", overlayPath).
		Msg("Overlay creation failed")

# Integration Points

This package integrates with:

  - pkg/lab: Logs provisioning pipeline progress per run and per instance
  - pkg/image: Logs base image download and cache hits
  - pkg/supervisor: Logs VM process launch and PIDs
  - cmd/ssh-lab: Initializes the global logger from CLI flags
*/
package log
