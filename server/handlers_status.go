package server

import (
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/spuro/spuro/entity/storage"
	"github.com/spuro/spuro/logger"
	"github.com/spuro/spuro/version"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// HandleHealth is the liveness probe.
// GET /health
func (s *SpuroServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Get().Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

type statusResponse struct {
	Version     version.Info  `json:"version"`
	Uptime      string        `json:"uptime"`
	State       string        `json:"state"`
	Store       storage.Stats `json:"store"`
	Watchers    int           `json:"watch_filters"`
	Subscribers int           `json:"event_subscribers"`
	Process     processStats  `json:"process"`
}

type processStats struct {
	PID        int     `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// HandleStatus reports store occupancy, subscriber counts, and process
// resource usage.
// GET /api/status
func (s *SpuroServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	entitiesLive.Set(float64(stats.Live))

	s.clientsMu.Lock()
	subscribers := len(s.clients)
	s.clientsMu.Unlock()

	resp := statusResponse{
		Version:     version.Get(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
		State:       stateString(s.getState()),
		Store:       stats,
		Watchers:    s.hub.FilterCount(),
		Subscribers: subscribers,
		Process:     processStats{PID: os.Getpid()},
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			resp.Process.RSSBytes = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			resp.Process.CPUPercent = cpu
		}
	} else {
		s.logger.Debugw("process stats unavailable", logger.FieldError, err)
	}

	writeJSON(w, http.StatusOK, resp)
}
