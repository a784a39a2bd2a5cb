// Package errors implements lspd's error taxonomy (spec §7): one
// struct type per error kind. The kinds that carry an underlying cause
// (ConfigError, LspError, OperationFailedError,
// StorageConfigurationError) expose it through Unwrap so
// errors.Is/errors.As compose normally across component boundaries;
// the other kinds carry no cause and have no Unwrap.
package errors

import (
	"fmt"
	"time"
)

// ErrorType names one of the kinds in the taxonomy.
type ErrorType string

const (
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeLsp              ErrorType = "lsp"
	ErrorTypeOperationFailed  ErrorType = "storage_operation_failed"
	ErrorTypeStorageConfig    ErrorType = "storage_configuration"
	ErrorTypeNormalization    ErrorType = "normalization"
	ErrorTypeSignatureParsing ErrorType = "signature_parsing"
	ErrorTypeInvalidSymbol    ErrorType = "invalid_symbol"
	ErrorTypeInvalidScope     ErrorType = "invalid_scope"
	ErrorTypeMissingContext   ErrorType = "missing_context"
	ErrorTypeDecode           ErrorType = "decode"
)

// ConfigError — malformed registry config, missing required paths,
// invalid DB location. Surfaced to the client that provoked it; never
// retried.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %q): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// LspError — server not installed, failed to initialize, returned an
// error response, or timed out.
type LspError struct {
	Language   string
	Workspace  string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewLspError(language, workspace, op string, err error) *LspError {
	return &LspError{Language: language, Workspace: workspace, Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *LspError) Error() string {
	return fmt.Sprintf("lsp %s failed for %s in %s: %v", e.Operation, e.Language, e.Workspace, e.Underlying)
}

func (e *LspError) Unwrap() error { return e.Underlying }

// OperationFailedError — a storage get/set/scan failed. The dispatcher
// retries a failed cache write-through once; a failed cache read is
// logged as a warning and treated as a miss, never retried.
type OperationFailedError struct {
	Operation  string
	Key        string
	Underlying error
	Timestamp  time.Time
}

func NewOperationFailedError(op, key string, err error) *OperationFailedError {
	return &OperationFailedError{Operation: op, Key: key, Underlying: err, Timestamp: time.Now()}
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %q: %v", e.Operation, e.Key, e.Underlying)
}

func (e *OperationFailedError) Unwrap() error { return e.Underlying }

// StorageConfigurationError — failed to open a backend. Fatal for the
// affected workspace until resolved.
type StorageConfigurationError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

func NewStorageConfigurationError(path string, err error) *StorageConfigurationError {
	return &StorageConfigurationError{Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *StorageConfigurationError) Error() string {
	return fmt.Sprintf("failed to open storage backend at %s: %v", e.Path, e.Underlying)
}

func (e *StorageConfigurationError) Unwrap() error { return e.Underlying }

// NormalizationError — symbol-level UID normalization failure during
// extraction. Skipped with a count reported in batch stats; never
// fatal.
type NormalizationError struct {
	SymbolName string
	Reason     string
	Timestamp  time.Time
}

func NewNormalizationError(symbolName, reason string) *NormalizationError {
	return &NormalizationError{SymbolName: symbolName, Reason: reason, Timestamp: time.Now()}
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed for symbol %q: %s", e.SymbolName, e.Reason)
}

// SignatureParsingError — a symbol's signature could not be normalized.
type SignatureParsingError struct {
	Signature string
	Reason    string
	Timestamp time.Time
}

func NewSignatureParsingError(signature, reason string) *SignatureParsingError {
	return &SignatureParsingError{Signature: signature, Reason: reason, Timestamp: time.Now()}
}

func (e *SignatureParsingError) Error() string {
	return fmt.Sprintf("signature parsing failed for %q: %s", e.Signature, e.Reason)
}

// InvalidSymbolError — a symbol record failed validation (§4.5).
type InvalidSymbolError struct {
	SymbolName string
	Field      string
	Reason     string
	Timestamp  time.Time
}

func NewInvalidSymbolError(symbolName, field, reason string) *InvalidSymbolError {
	return &InvalidSymbolError{SymbolName: symbolName, Field: field, Reason: reason, Timestamp: time.Now()}
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("invalid symbol %q: field %s: %s", e.SymbolName, e.Field, e.Reason)
}

// InvalidScopeError — a symbol's enclosing scope chain was malformed.
type InvalidScopeError struct {
	SymbolName string
	Reason     string
	Timestamp  time.Time
}

func NewInvalidScopeError(symbolName, reason string) *InvalidScopeError {
	return &InvalidScopeError{SymbolName: symbolName, Reason: reason, Timestamp: time.Now()}
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope for symbol %q: %s", e.SymbolName, e.Reason)
}

// MissingContextError — required bootstrap state (workspace id, file
// version id) is absent. Programmer error; surfaced as a 500-class
// response.
type MissingContextError struct {
	Field     string
	Timestamp time.Time
}

func NewMissingContextError(field string) *MissingContextError {
	return &MissingContextError{Field: field, Timestamp: time.Now()}
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("missing required context: %s", e.Field)
}

// DecodeError — oversized message, truncated frame, or malformed JSON
// on the client wire protocol. Closes the connection.
type DecodeError struct {
	Reason    string
	Timestamp time.Time
}

func NewDecodeError(reason string) *DecodeError {
	return &DecodeError{Reason: reason, Timestamp: time.Now()}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s", e.Reason)
}

// MultiError aggregates multiple errors, e.g. from a batch conversion.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error { return e.Errors }
