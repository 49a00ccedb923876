package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeOracle     ErrorType = "oracle"
	ErrorTypeIntegrity  ErrorType = "integrity"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// ReasonCode is the caller-facing classification of a failed match, verification
// or optimization request.
type ReasonCode string

const (
	ReasonNone                    ReasonCode = ""
	ReasonOracleUnavailable       ReasonCode = "OracleUnavailable"
	ReasonOracleMalformedResponse ReasonCode = "OracleMalformedResponse"
	ReasonIntegrityViolation      ReasonCode = "IntegrityViolation"
	ReasonEmptyInput              ReasonCode = "EmptyInput"
)

// Message returns the user-facing description of a reason code.
func (r ReasonCode) Message() string {
	switch r {
	case ReasonOracleUnavailable:
		return "the generation service is unreachable, please try again"
	case ReasonOracleMalformedResponse:
		return "the generation service returned a response that could not be read"
	case ReasonIntegrityViolation:
		return "the AI invented or altered facts that are not in your résumé"
	case ReasonEmptyInput:
		return "the résumé or job posting is missing required information"
	default:
		return ""
	}
}

// Code returns the error code that carries this reason.
func (r ReasonCode) Code() string {
	switch r {
	case ReasonOracleUnavailable:
		return ErrCodeOracleUnavailable
	case ReasonOracleMalformedResponse:
		return ErrCodeOracleMalformed
	case ReasonIntegrityViolation:
		return ErrCodeIntegrityViolation
	case ReasonEmptyInput:
		return ErrCodeEmptyInput
	default:
		return ""
	}
}

// AppError represents a structured application error.
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Reason maps the error code onto the reason code taxonomy.
func (e *AppError) Reason() ReasonCode {
	switch e.Code {
	case ErrCodeOracleUnavailable, ErrCodeAITimeout, ErrCodeNetworkTimeout:
		return ReasonOracleUnavailable
	case ErrCodeOracleMalformed:
		return ReasonOracleMalformedResponse
	case ErrCodeIntegrityViolation:
		return ReasonIntegrityViolation
	case ErrCodeEmptyInput:
		return ReasonEmptyInput
	default:
		return ReasonNone
	}
}

// newAppError is an unexported helper to create AppError instances.
func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types.
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewOracleError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeOracle, code, message, cause)
}

func NewIntegrityError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIntegrity, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ReasonOf walks the error chain and returns the reason code of the first
// AppError that carries one.
func ReasonOf(err error) ReasonCode {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return ReasonNone
		}
		if reason := appErr.Reason(); reason != ReasonNone {
			return reason
		}
		err = appErr.Cause
	}
	return ReasonNone
}

// HasCode reports whether any AppError in the chain has the given code.
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Logger wraps slog with application-specific methods.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(level slog.Level) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a structured logger writing JSON lines to w.
func NewLoggerTo(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(w, opts)
	return &Logger{logger: slog.New(handler)}
}

// With returns a logger that adds the given attributes to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// LogError logs an application error with appropriate level and context.
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "error_cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// ParseLevel converts a configured log level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// New creates a new logger instance.
func New(level string) (*Logger, error) {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return NewLogger(slogLevel), nil
}

// Common error codes.
const (
	ErrCodeFileNotFound       = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable    = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat      = "INVALID_FORMAT"
	ErrCodeOracleUnavailable  = "ORACLE_UNAVAILABLE"
	ErrCodeOracleMalformed    = "ORACLE_MALFORMED_RESPONSE"
	ErrCodeAITimeout          = "AI_TIMEOUT"
	ErrCodeIntegrityViolation = "INTEGRITY_VIOLATION"
	ErrCodeEmptyInput         = "EMPTY_INPUT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMissingAPIKey      = "MISSING_API_KEY"
	ErrCodeNetworkTimeout     = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeStorageFailed      = "STORAGE_FAILED"
	ErrCodeCancelled          = "OPERATION_CANCELLED"
	ErrCodeInProgress         = "OPTIMIZATION_IN_PROGRESS"
)
