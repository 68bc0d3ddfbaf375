package config

import (
	"reflect"
	"sort"
	"strings"

	logx "serialsched/pkg/logx"
)

// JobChanges lists job names by how they differ between two configs.
type JobChanges struct {
	Added   []string
	Removed []string
	Changed []string
}

func (c JobChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// SummarizeConfigChange returns (1) a sorted list of changed sections,
// (2) safe structured attrs for logging (never the telegram token) and
// (3) the per-job differences.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, JobChanges) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.isolation", newCfg.Scheduler.IsolationMode()),
			logx.String("scheduler.kill_grace", strings.TrimSpace(newCfg.Scheduler.KillGrace)),
			logx.Bool("scheduler.reload_on_change", newCfg.Scheduler.ReloadOnChange),
		)
	}

	oStore, nStore := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oStore != nStore {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nStore.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nStore.Path) != ""),
		)
	}

	if oldCfg.Admin != newCfg.Admin {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", newCfg.Admin.Enabled),
			logx.String("admin.addr", newCfg.Admin.Address()),
		)
	}

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Int64("telegram.chat_id", newCfg.Telegram.ChatID),
		)
	}

	if oldCfg.Alert != newCfg.Alert {
		changed = append(changed, "alert")
		attrs = append(attrs, logx.Bool("alert.enabled", newCfg.Alert.Enabled))
	}

	jobs := diffJobs(oldCfg.Jobs, newCfg.Jobs)
	if !jobs.Empty() {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.added", len(jobs.Added)),
			logx.Int("jobs.removed", len(jobs.Removed)),
			logx.Int("jobs.changed", len(jobs.Changed)),
			logx.Int("jobs.total", len(newCfg.Jobs)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, jobs
}

func derefStorage(sc *StorageConfig) StorageConfig {
	if sc == nil {
		return StorageConfig{}
	}
	return *sc
}

func diffJobs(oldJobs, newJobs []JobConfig) JobChanges {
	index := func(jobs []JobConfig) map[string]JobConfig {
		m := make(map[string]JobConfig, len(jobs))
		for _, j := range jobs {
			m[strings.TrimSpace(j.Name)] = j
		}
		return m
	}
	oldM, newM := index(oldJobs), index(newJobs)

	var out JobChanges
	for name, n := range newM {
		o, ok := oldM[name]
		switch {
		case !ok:
			out.Added = append(out.Added, name)
		case !reflect.DeepEqual(o, n):
			out.Changed = append(out.Changed, name)
		}
	}
	for name := range oldM {
		if _, ok := newM[name]; !ok {
			out.Removed = append(out.Removed, name)
		}
	}
	sort.Strings(out.Added)
	sort.Strings(out.Removed)
	sort.Strings(out.Changed)
	return out
}
