package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flemzord/cadence/internal/ambient"
)

const (
	hudTimeout = 2 * time.Minute

	hudKey        = "systemprompt:hud"
	hudUpdatedKey = "systemprompt:updated"
)

// HUDConfig selects the ambient sources.
type HUDConfig struct {
	Weather   ambient.WeatherConfig  `yaml:"weather"`
	Calendars []ambient.CalendarFeed `yaml:"calendars"`
	Todoist   ambient.TodoistConfig  `yaml:"todoist"`
}

// HUD is the hourly ambient-context refresh: weather, upcoming calendar
// events, and open todos, rendered as markdown and stashed in the KV
// cache. Runs at :05, after the top-of-hour jobs.
type HUD struct {
	cfg    HUDConfig
	cache  CacheWriter
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

// NewHUD creates the ambient refresh job. client may be nil for the
// default HTTP client.
func NewHUD(cfg HUDConfig, cache CacheWriter, client *http.Client, deps Deps) *HUD {
	deps = deps.withDefaults()
	return &HUD{
		cfg:    cfg,
		cache:  cache,
		client: client,
		now:    deps.Now,
		logger: deps.Logger,
	}
}

func (h *HUD) ID() string             { return "hud" }
func (h *HUD) Schedule() string       { return "5 * * * *" }
func (h *HUD) Timeout() time.Duration { return hudTimeout }

// Run gathers every ambient section and writes the rendered HUD. A
// section that fails to gather is omitted from this refresh; only the
// final cache write can fail the job.
func (h *HUD) Run(ctx context.Context) error {
	now := h.now()
	hud := ambient.HUD{GatheredAt: now.Format("2006-01-02 15:04")}

	weather, err := ambient.FetchWeather(ctx, h.client, h.cfg.Weather)
	if err != nil {
		h.logger.Warn("weather unavailable, omitting from hud", "error", err)
	} else {
		hud.Weather = weather
	}

	if len(h.cfg.Calendars) > 0 {
		hud.Calendar = ambient.FetchCalendars(ctx, h.client, h.cfg.Calendars, now,
			func(format string, args ...any) {
				h.logger.Warn(fmt.Sprintf(format, args...))
			})
	}

	if h.cfg.Todoist.Token != "" {
		todos, err := ambient.FetchTodos(ctx, h.client, h.cfg.Todoist)
		if err != nil {
			h.logger.Warn("todos unavailable, omitting from hud", "error", err)
		} else {
			hud.Todos = todos
		}
	}

	entries := map[string]string{
		hudKey:        hud.Render(),
		hudUpdatedKey: now.Format(time.RFC3339),
	}
	if err := h.cache.SetAll(ctx, entries, cacheTTL); err != nil {
		return fmt.Errorf("hud: %w", err)
	}

	h.logger.Info("hud refreshed", "size", len(entries[hudKey]))
	return nil
}
