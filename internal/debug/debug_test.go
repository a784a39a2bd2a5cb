package debug

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func saveAndRestoreState() func() {
	originalDebug := EnableDebug
	originalOutput := debugOutput
	originalFile := debugFile
	return func() {
		EnableDebug = originalDebug
		debugOutput = originalOutput
		debugFile = originalFile
	}
}

func TestIsDebugEnabled(t *testing.T) {
	defer saveAndRestoreState()()
	os.Unsetenv("PROBE_DEBUG")
	os.Unsetenv("CODE_SEARCH_DEBUG")

	EnableDebug = "false"
	assert.False(t, IsDebugEnabled())

	EnableDebug = "true"
	assert.True(t, IsDebugEnabled())

	EnableDebug = "invalid"
	assert.False(t, IsDebugEnabled())
}

func TestIsDebugEnabled_EnvVars(t *testing.T) {
	defer saveAndRestoreState()()
	EnableDebug = "false"

	t.Setenv("PROBE_DEBUG", "1")
	assert.True(t, IsDebugEnabled())
	t.Setenv("PROBE_DEBUG", "")

	t.Setenv("CODE_SEARCH_DEBUG", "true")
	assert.True(t, IsDebugEnabled())
}

func TestLog(t *testing.T) {
	defer saveAndRestoreState()()
	EnableDebug = "true"

	var buf bytes.Buffer
	SetDebugOutput(&buf)

	Log("POOL", "spawned %s", "gopls")
	out := buf.String()
	assert.True(t, strings.Contains(out, "[DEBUG:POOL]"))
	assert.True(t, strings.Contains(out, "spawned gopls"))
}

func TestLog_DisabledProducesNoOutput(t *testing.T) {
	defer saveAndRestoreState()()
	EnableDebug = "false"
	os.Unsetenv("PROBE_DEBUG")
	os.Unsetenv("CODE_SEARCH_DEBUG")

	var buf bytes.Buffer
	SetDebugOutput(&buf)

	Printf("should not appear")
	assert.Equal(t, "", buf.String())
}

func TestInitDebugLogFileAndClose(t *testing.T) {
	defer saveAndRestoreState()()

	path, err := InitDebugLogFile()
	if err != nil {
		t.Fatalf("InitDebugLogFile: %v", err)
	}
	defer os.Remove(path)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}

	if err := CloseDebugLog(); err != nil {
		t.Fatalf("CloseDebugLog: %v", err)
	}
	assert.Nil(t, debugFile)
}

func TestWarn_FallsBackToStderrWithNoSink(t *testing.T) {
	defer saveAndRestoreState()()
	SetDebugOutput(nil)
	// Should not panic even with no writer configured.
	Warn("storage read failed for %s", "key1")
}
