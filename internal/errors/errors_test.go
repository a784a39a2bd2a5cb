package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError(t *testing.T) {
	underlying := stderrors.New("not a directory")
	err := NewConfigError("root_markers", "???", underlying)

	assert.Contains(t, err.Error(), "root_markers")
	assert.Contains(t, err.Error(), "not a directory")
	assert.ErrorIs(t, err, underlying)
}

func TestLspError(t *testing.T) {
	underlying := stderrors.New("exec: \"gopls\": executable file not found in $PATH")
	err := NewLspError("go", "/tmp/wksp", "initialize", underlying)

	assert.Equal(t, "go", err.Language)
	assert.Contains(t, err.Error(), "initialize")
	assert.ErrorIs(t, err, underlying)
}

func TestOperationFailedError(t *testing.T) {
	underlying := stderrors.New("disk full")
	err := NewOperationFailedError("set", "ws1:textDocument_definition:main.go:abc", underlying)

	assert.Contains(t, err.Error(), "set")
	assert.ErrorIs(t, err, underlying)
}

func TestStorageConfigurationError(t *testing.T) {
	underlying := stderrors.New("permission denied")
	err := NewStorageConfigurationError("/var/cache/lspd/ws1", underlying)

	assert.Contains(t, err.Error(), "/var/cache/lspd/ws1")
	assert.ErrorIs(t, err, underlying)
}

func TestValidationErrors(t *testing.T) {
	norm := NewNormalizationError("lambda_1", "anonymous symbol missing position")
	assert.Contains(t, norm.Error(), "lambda_1")

	sig := NewSignatureParsingError("func(", "unterminated parameter list")
	assert.Contains(t, sig.Error(), "unterminated")

	invSym := NewInvalidSymbolError("", "name", "must not be empty")
	assert.Contains(t, invSym.Error(), "name")

	invScope := NewInvalidScopeError("x", "scope stack is cyclic")
	assert.Contains(t, invScope.Error(), "cyclic")
}

func TestMissingContextError(t *testing.T) {
	err := NewMissingContextError("workspace_id")
	assert.Contains(t, err.Error(), "workspace_id")
}

func TestDecodeError(t *testing.T) {
	err := NewDecodeError("frame length 20971520 exceeds maximum of 10485760")
	assert.Contains(t, err.Error(), "maximum")
}

func TestMultiError(t *testing.T) {
	t.Run("filters nils", func(t *testing.T) {
		e1 := stderrors.New("one")
		merr := NewMultiError([]error{nil, e1, nil})
		require.Len(t, merr.Errors, 1)
		assert.Equal(t, "one", merr.Error())
	})

	t.Run("no errors", func(t *testing.T) {
		merr := NewMultiError(nil)
		assert.Equal(t, "no errors", merr.Error())
	})

	t.Run("multiple errors", func(t *testing.T) {
		merr := NewMultiError([]error{stderrors.New("a"), stderrors.New("b")})
		assert.Contains(t, merr.Error(), "2 errors")
	})
}
