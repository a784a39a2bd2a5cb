package watchdog

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lspdaemon/lspd/internal/debug"
)

// DefaultMaxCPUPercent and DefaultMaxMemoryMB are the policy
// thresholds beyond which a child is marked unhealthy.
const (
	DefaultMaxCPUPercent = 80.0
	DefaultMaxMemoryMB   = 1024.0
	warnFraction         = 0.8
)

// clockTicksPerSec is the kernel's USER_HZ. Linux has fixed this at
// 100 on every mainstream architecture for two decades; reading it
// properly requires cgo's sysconf, which this daemon avoids.
const clockTicksPerSec = 100

// Stats is a single CPU/memory observation for a child process.
type Stats struct {
	CPUPercent float64
	MemoryMB   float64
	Running    bool
}

// Policy holds the resource thresholds a Stats sample is checked
// against.
type Policy struct {
	MaxCPUPercent float64
	MaxMemoryMB   float64
}

// DefaultPolicy returns the spec defaults (80% CPU, 1024 MiB RSS).
func DefaultPolicy() Policy {
	return Policy{MaxCPUPercent: DefaultMaxCPUPercent, MaxMemoryMB: DefaultMaxMemoryMB}
}

// Evaluate reports whether stats violates the policy outright, and
// whether it has crossed the 80%-of-max warning line.
func (p Policy) Evaluate(stats Stats) (unhealthy, warn bool) {
	maxCPU := p.MaxCPUPercent
	if maxCPU <= 0 {
		maxCPU = DefaultMaxCPUPercent
	}
	maxMem := p.MaxMemoryMB
	if maxMem <= 0 {
		maxMem = DefaultMaxMemoryMB
	}
	unhealthy = stats.CPUPercent > maxCPU || stats.MemoryMB > maxMem
	warn = !unhealthy && (stats.CPUPercent > maxCPU*warnFraction || stats.MemoryMB > maxMem*warnFraction)
	return unhealthy, warn
}

// Monitor samples CPU/memory usage for a single pid.
type Monitor interface {
	Sample(pid int) (Stats, error)
}

// NewMonitor returns the Monitor adapter for the running platform.
func NewMonitor() Monitor {
	switch runtime.GOOS {
	case "linux":
		return &linuxMonitor{prev: make(map[int]cpuSample)}
	case "darwin":
		return &psMonitor{}
	default:
		return &fallbackMonitor{}
	}
}

type cpuSample struct {
	ticks uint64
	at    time.Time
}

// linuxMonitor reads /proc/<pid>/stat for CPU ticks and
// /proc/<pid>/status for RSS, mirroring the field-by-field parsing
// idiom of /proc/[pid]/status readers in the ecosystem.
type linuxMonitor struct {
	mu   sync.Mutex
	prev map[int]cpuSample
}

func (m *linuxMonitor) Sample(pid int) (Stats, error) {
	ticks, err := readProcStatTicks(pid)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{Running: false}, nil
		}
		return Stats{}, err
	}
	rssKB, err := readProcStatusRSS(pid)
	if err != nil {
		return Stats{}, err
	}

	now := time.Now()
	m.mu.Lock()
	prev, ok := m.prev[pid]
	m.prev[pid] = cpuSample{ticks: ticks, at: now}
	m.mu.Unlock()

	var cpuPct float64
	if ok && now.After(prev.at) {
		elapsed := now.Sub(prev.at).Seconds()
		if elapsed > 0 && ticks >= prev.ticks {
			deltaTicks := float64(ticks - prev.ticks)
			cpuPct = (deltaTicks / clockTicksPerSec) / elapsed * 100
		}
	}

	return Stats{CPUPercent: cpuPct, MemoryMB: float64(rssKB) / 1024, Running: true}, nil
}

// readProcStatTicks parses utime+stime (fields 14 and 15 of
// /proc/<pid>/stat) as total scheduled CPU ticks. The comm field can
// itself contain spaces and parentheses, so the fields are located
// from the end, past the closing ')'.
func readProcStatTicks(pid int) (uint64, error) {
	path := fmt.Sprintf("/proc/%d/stat", pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	line := string(data)
	closeParen := strings.LastIndex(line, ")")
	if closeParen < 0 || closeParen+2 >= len(line) {
		return 0, fmt.Errorf("malformed %s", path)
	}
	fields := strings.Fields(line[closeParen+2:])
	// fields[0] is state (field 3); utime is field 14, stime field 15,
	// i.e. index 11 and 12 in this post-comm slice.
	if len(fields) < 13 {
		return 0, fmt.Errorf("malformed %s: too few fields", path)
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return 0, err
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return 0, err
	}
	return utime + stime, nil
}

// readProcStatusRSS parses the VmRSS line of /proc/<pid>/status,
// given in kB.
func readProcStatusRSS(pid int) (uint64, error) {
	path := fmt.Sprintf("/proc/%d/status", pid)
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "VmRSS:" {
			return strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, nil
}

// psMonitor shells out to ps for macOS, where there is no /proc.
type psMonitor struct{}

func (psMonitor) Sample(pid int) (Stats, error) {
	out, err := exec.Command("ps", "-o", "pid,pcpu,rss", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			// ps returns 1 when the pid no longer exists.
			return Stats{Running: false}, nil
		}
		return Stats{}, err
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return Stats{Running: false}, nil
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 3 {
		return Stats{}, fmt.Errorf("unexpected ps output: %q", lines[1])
	}
	cpuPct, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Stats{}, err
	}
	rssKB, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Stats{}, err
	}
	return Stats{CPUPercent: cpuPct, MemoryMB: rssKB / 1024, Running: true}, nil
}

// fallbackMonitor is used on platforms with neither /proc nor ps
// (Windows, or anything else) until a native adapter lands.
type fallbackMonitor struct {
	warned sync.Once
}

func (m *fallbackMonitor) Sample(pid int) (Stats, error) {
	m.warned.Do(func() {
		debug.LogWatchdog("no process monitor adapter for GOOS=%s, reporting zeroed stats", runtime.GOOS)
	})
	return Stats{CPUPercent: 0, MemoryMB: 0, Running: true}, nil
}
