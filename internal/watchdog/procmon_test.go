package watchdog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_EvaluateUnhealthyOnCPU(t *testing.T) {
	p := DefaultPolicy()
	unhealthy, warn := p.Evaluate(Stats{CPUPercent: 95, MemoryMB: 10, Running: true})
	assert.True(t, unhealthy)
	assert.False(t, warn)
}

func TestPolicy_EvaluateUnhealthyOnMemory(t *testing.T) {
	p := DefaultPolicy()
	unhealthy, _ := p.Evaluate(Stats{CPUPercent: 1, MemoryMB: 2048, Running: true})
	assert.True(t, unhealthy)
}

func TestPolicy_EvaluateWarnsNearLimit(t *testing.T) {
	p := DefaultPolicy()
	unhealthy, warn := p.Evaluate(Stats{CPUPercent: 70, MemoryMB: 10, Running: true})
	assert.False(t, unhealthy)
	assert.True(t, warn)
}

func TestPolicy_EvaluateHealthyWellUnderLimits(t *testing.T) {
	p := DefaultPolicy()
	unhealthy, warn := p.Evaluate(Stats{CPUPercent: 5, MemoryMB: 50, Running: true})
	assert.False(t, unhealthy)
	assert.False(t, warn)
}

func TestPolicy_DefaultsApplyWhenUnset(t *testing.T) {
	p := Policy{}
	unhealthy, _ := p.Evaluate(Stats{CPUPercent: 90, MemoryMB: 0, Running: true})
	assert.True(t, unhealthy)
}

func TestLinuxMonitor_SampleSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("no /proc on this platform")
	}
	m := &linuxMonitor{prev: make(map[int]cpuSample)}
	stats, err := m.Sample(os.Getpid())
	require.NoError(t, err)
	assert.True(t, stats.Running)
	assert.True(t, stats.MemoryMB > 0)
}

func TestLinuxMonitor_SampleNonexistentPidReportsNotRunning(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("no /proc on this platform")
	}
	m := &linuxMonitor{prev: make(map[int]cpuSample)}
	stats, err := m.Sample(1 << 30)
	require.NoError(t, err)
	assert.False(t, stats.Running)
}

func TestFallbackMonitor_ReportsZeroedRunningStats(t *testing.T) {
	m := &fallbackMonitor{}
	stats, err := m.Sample(12345)
	require.NoError(t, err)
	assert.True(t, stats.Running)
	assert.Equal(t, 0.0, stats.CPUPercent)
	assert.Equal(t, 0.0, stats.MemoryMB)
}
