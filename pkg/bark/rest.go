package bark

import (
	"fmt"
	"runtime/debug"
)

// API Response types
type (
	// ErrorResponse represents a single error response with human readable reason and a code.
	ErrorResponse struct {
		// Status is the HTTP status code the error is reported with
		Status int `json:"-" yaml:"-"`

		// Error code represents error ID from a relevant domain
		Code string `json:"code" yaml:"code"`

		// Human readable representation of the error, suitable for display
		Message string `json:"message" yaml:"message"`
	}

	// StatusResponse represents ready state / healthcheck response
	StatusResponse struct {
		Ready bool `json:"ready" yaml:"ready"`
	}

	// VersionResponse is a standard response object for /version request to inspect server running version.
	VersionResponse struct {
		Name      string `json:"name,omitempty" yaml:"name,omitempty"`
		Version   string `json:"version,omitempty" yaml:"version,omitempty"`
		GoVersion string `json:"goVersion,omitempty" yaml:"goVersion,omitempty"`
	}
)

// Limits is a pair of page size limits used by listing endpoints.
type Limits struct {
	// Default is the page size used when a client has not asked for any
	Default int
	// Max is the largest page size a client can get
	Max int
}

// NewErrorResponse return new [ErrorResponse] object built from an object implementing [error] interface.
// The constructor returns nil if err argument is nil.
func NewErrorResponse(statusCode int, code string, err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	return &ErrorResponse{
		Status:  statusCode,
		Code:    code,
		Message: err.Error(),
	}
}

// Error returns string representation of the error to implement error interface for [ErrorResponse] type.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%v %s: %s", e.Status, e.Code, e.Message)
}

// Clamp returns the page size to use for a requested one.
// A nil request gets the [Limits.Default]; requests above [Limits.Max] are cut to it.
// A zero value of either limit means no limit.
func (l Limits) Clamp(requested *int) int {
	result := l.Default
	if requested != nil {
		result = *requested
	}

	if l.Max > 0 && (result > l.Max || result <= 0) {
		result = l.Max
	}

	return result
}

func NewVersionResponse(name string) VersionResponse {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return VersionResponse{
			Name:    name,
			Version: "unknown",
		}
	}

	return VersionResponse{
		Name:      name,
		Version:   bi.Main.Version,
		GoVersion: bi.GoVersion,
	}
}
