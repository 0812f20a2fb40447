package session

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/casetrail/casetrail/internal/conf"
)

// PressureMonitor is the process-wide advisory memory-pressure signal. It
// samples system memory at most once per check interval and answers from
// the cached reading in between, so consulting it is cheap and lock-light.
// It is read-only: nothing in the engine acts on memory beyond skipping
// optional work.
type PressureMonitor struct {
	thresholdPercent float64
	checkInterval    time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	high      bool
}

// NewPressureMonitor creates a monitor from session settings.
func NewPressureMonitor(settings *conf.SessionSettings) *PressureMonitor {
	interval := settings.PressureCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PressureMonitor{
		thresholdPercent: settings.MemoryPressurePercent,
		checkInterval:    interval,
	}
}

// High reports whether system memory use is above the configured
// threshold. Sampling failures read as no pressure; degrading the session
// because the signal is unavailable would invert its purpose.
func (m *PressureMonitor) High() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastCheck) < m.checkInterval {
		return m.high
	}
	m.lastCheck = now

	vm, err := mem.VirtualMemory()
	if err != nil {
		getLogger().Warn("memory sampling failed", "error", err)
		m.high = false
		return false
	}
	m.high = vm.UsedPercent >= m.thresholdPercent
	return m.high
}
