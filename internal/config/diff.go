package config

import (
	"reflect"
	"time"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	TimeoutChanged bool
	NewTimeout     time.Duration

	// RestartRequired names top-level sections whose changes only apply
	// after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.TimeoutChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs. The log level and pipeline timeout are
// hot-reloadable; every other changed section is listed in RestartRequired.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Pipeline.Timeout != new.Pipeline.Timeout {
		d.TimeoutChanged = true
		d.NewTimeout = new.Pipeline.Timeout
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	oldPipeline, newPipeline := old.Pipeline, new.Pipeline
	oldPipeline.Timeout, newPipeline.Timeout = 0, 0

	for _, s := range []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"pipeline", oldPipeline, newPipeline},
		{"history", old.History, new.History},
		{"forms", old.Forms, new.Forms},
		{"shortener", old.Shortener, new.Shortener},
		{"location", old.Location, new.Location},
		{"transports", old.Transports, new.Transports},
		{"mcp", old.MCP, new.MCP},
		{"telemetry", old.Telemetry, new.Telemetry},
	} {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
