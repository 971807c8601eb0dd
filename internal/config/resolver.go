package config

// Job enablement. Capsules and the rolling summary default to on and
// are turned off explicitly; the HUD and backup jobs are on exactly
// when their sources are configured.

func (j JobsConfig) capsulesEnabled() bool { return j.Capsules == nil || *j.Capsules }
func (j JobsConfig) todayEnabled() bool    { return j.Today == nil || *j.Today }

func (j JobsConfig) hudEnabled() bool {
	return j.HUD.Weather.Name != "" || len(j.HUD.Calendars) > 0 || j.HUD.Todoist.Token != ""
}

func (j JobsConfig) backupEnabled() bool { return j.Backup.Repository != "" }

// EnabledJobs returns the ids of the jobs this config will register, in
// registration order. Deterministic order keeps startup logs and tests
// stable.
func EnabledJobs(cfg *Config) []string {
	var ids []string
	if cfg.Jobs.capsulesEnabled() {
		ids = append(ids, "capsule-daytime", "capsule-nighttime")
	}
	if cfg.Jobs.todayEnabled() {
		ids = append(ids, "today-so-far")
	}
	if cfg.Jobs.hudEnabled() {
		ids = append(ids, "hud")
	}
	if cfg.Jobs.backupEnabled() {
		ids = append(ids, "backup")
	}
	return ids
}
