package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/httputil"
)

// QuoteBudget reports the provider calls left today
type QuoteBudget interface {
	GetRemainingRequests() int
}

// SubscriberCounter reports live event subscribers
type SubscriberCounter interface {
	SubscriberCount() int
}

// JobLister lists scheduled jobs
type JobLister interface {
	Jobs() []string
}

// SystemHandlers serves operational status
type SystemHandlers struct {
	databases   []*database.DB
	quoteBudget QuoteBudget
	subscribers SubscriberCounter
	jobs        JobLister
	startedAt   time.Time
	log         zerolog.Logger
}

// DBInfo describes one database file
type DBInfo struct {
	Name          string  `json:"name"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	FreelistPages int64   `json:"freelist_pages"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status              string   `json:"status"`
	UptimeSeconds       int64    `json:"uptime_seconds"`
	CPUPercent          float64  `json:"cpu_percent"`
	MemoryPercent       float64  `json:"memory_percent"`
	Databases           []DBInfo `json:"databases"`
	QuoteCallsRemaining int      `json:"quote_calls_remaining"` // -1 when unlimited
	EventSubscribers    int      `json:"event_subscribers"`
	ScheduledJobs       []string `json:"scheduled_jobs"`
	LastChecked         string   `json:"last_checked"`
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(
	databases []*database.DB,
	quoteBudget QuoteBudget,
	subscribers SubscriberCounter,
	jobs JobLister,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		databases:   databases,
		quoteBudget: quoteBudget,
		subscribers: subscribers,
		jobs:        jobs,
		startedAt:   time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus returns uptime, host load, database sizes and the
// remaining provider budget
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:              "healthy",
		UptimeSeconds:       int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:          cpuPercent,
		MemoryPercent:       memPercent,
		Databases:           make([]DBInfo, 0, len(h.databases)),
		QuoteCallsRemaining: -1,
		ScheduledJobs:       []string{},
		LastChecked:         time.Now().UTC().Format(time.RFC3339),
	}

	for _, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			response.Status = "degraded"
			continue
		}
		response.Databases = append(response.Databases, DBInfo{
			Name:          db.Name(),
			SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
			WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
			FreelistPages: stats.FreelistCount,
		})
	}

	if h.quoteBudget != nil {
		response.QuoteCallsRemaining = h.quoteBudget.GetRemainingRequests()
	}
	if h.subscribers != nil {
		response.EventSubscribers = h.subscribers.SubscriberCount()
	}
	if h.jobs != nil {
		response.ScheduledJobs = h.jobs.Jobs()
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, response)
}

// getSystemStats samples CPU over 100ms so the endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
