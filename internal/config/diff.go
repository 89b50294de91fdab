package config

import "reflect"

// ConfigDiff describes what changed between two configs.
//
// Log level and pipeline defaults can be applied live. Everything else is
// only reported so the caller can tell the operator a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is true when source, target, voice or silence changed.
	// Autostart is ignored since it only matters at startup.
	PipelineChanged bool
	Pipeline        PipelineConfig

	// RestartRequired lists the top-level sections that changed but cannot be
	// applied without restarting the process.
	RestartRequired []string
}

// Empty reports whether nothing relevant changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PipelineChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{Pipeline: new.Pipeline}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	op, np := old.Pipeline, new.Pipeline
	op.Autostart, np.Autostart = false, false
	if op != np {
		d.PipelineChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Segmentation != new.Segmentation {
		d.RestartRequired = append(d.RestartRequired, "segmentation")
	}
	if old.Catalog != new.Catalog {
		d.RestartRequired = append(d.RestartRequired, "catalog")
	}
	if old.Journal != new.Journal {
		d.RestartRequired = append(d.RestartRequired, "journal")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	return d
}
