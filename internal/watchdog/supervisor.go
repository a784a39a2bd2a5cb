package watchdog

import (
	"sync"
	"time"

	"github.com/lspdaemon/lspd/internal/debug"
)

// DefaultPollInterval is how often ProcessSupervisor samples its
// tracked children.
const DefaultPollInterval = 15 * time.Second

// ProcessSupervisor polls a set of child pids on an interval and
// invokes a callback when one crosses the resource policy.
type ProcessSupervisor struct {
	monitor     Monitor
	policy      Policy
	interval    time.Duration
	onUnhealthy func(pid int, stats Stats)

	mu      sync.Mutex
	tracked map[int]string // pid -> label, e.g. "gopls:/home/me/proj"

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewProcessSupervisor constructs a supervisor. interval of zero uses
// DefaultPollInterval; a zero Policy uses DefaultPolicy.
func NewProcessSupervisor(monitor Monitor, policy Policy, interval time.Duration, onUnhealthy func(pid int, stats Stats)) *ProcessSupervisor {
	if monitor == nil {
		monitor = NewMonitor()
	}
	if policy.MaxCPUPercent <= 0 && policy.MaxMemoryMB <= 0 {
		policy = DefaultPolicy()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ProcessSupervisor{
		monitor:     monitor,
		policy:      policy,
		interval:    interval,
		onUnhealthy: onUnhealthy,
		tracked:     make(map[int]string),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Track adds a pid to the poll set under a human-readable label.
func (s *ProcessSupervisor) Track(pid int, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[pid] = label
}

// Untrack removes a pid from the poll set, e.g. once its server has
// exited cleanly.
func (s *ProcessSupervisor) Untrack(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracked, pid)
}

// Start runs the poll loop in a background goroutine until Stop.
func (s *ProcessSupervisor) Start() {
	go s.run()
}

func (s *ProcessSupervisor) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

func (s *ProcessSupervisor) pollOnce() {
	s.mu.Lock()
	pids := make([]int, 0, len(s.tracked))
	labels := make(map[int]string, len(s.tracked))
	for pid, label := range s.tracked {
		pids = append(pids, pid)
		labels[pid] = label
	}
	s.mu.Unlock()

	for _, pid := range pids {
		stats, err := s.monitor.Sample(pid)
		if err != nil {
			debug.LogWatchdog("sample failed for pid %d (%s): %v", pid, labels[pid], err)
			continue
		}
		if !stats.Running {
			s.Untrack(pid)
			continue
		}
		unhealthy, warn := s.policy.Evaluate(stats)
		if warn {
			debug.LogWatchdog("pid %d (%s) approaching policy limit: cpu=%.1f%% mem=%.1fMiB", pid, labels[pid], stats.CPUPercent, stats.MemoryMB)
		}
		if unhealthy {
			debug.LogWatchdog("pid %d (%s) violates policy: cpu=%.1f%% mem=%.1fMiB", pid, labels[pid], stats.CPUPercent, stats.MemoryMB)
			if s.onUnhealthy != nil {
				s.onUnhealthy(pid, stats)
			}
		}
	}
}

// Stop halts the poll loop and waits for it to exit.
func (s *ProcessSupervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}
