package foreman

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidHostname is returned when the host record carries a blank name.
var ErrInvalidHostname = errors.New("invalid hostname")

// ConfigError reports a missing or malformed setting. It is always returned
// before any fact lookup or controller request is made.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %q: %s", e.Key, e.Message)
}

// HTTPError is a non-2xx response from the controller.
type HTTPError struct {
	Method     string
	Resource   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("foreman API %s %s returned %d: %s", e.Method, e.Resource, e.StatusCode, e.Body)
}

// DuplicateResourceError reports a different host already holding the IP or
// MAC being registered.
type DuplicateResourceError struct {
	Field     string
	Value     string
	Conflicts []string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("host with %s %s already exists: %s", e.Field, e.Value, strings.Join(e.Conflicts, ", "))
}

// AttributeNotFoundError is returned when no controller item matches the
// symbolic attribute value.
type AttributeNotFoundError struct {
	Field string
	Value string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found in foreman", e.Field, e.Value)
}

// ProtocolError reports a controller response whose shape does not match
// what the resource kind should return.
type ProtocolError struct {
	Resource string
	Message  string
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("unexpected response from %s: %s", e.Resource, e.Message)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the controller.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// IsConfigError reports whether err is a settings problem.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsDuplicate reports whether err is an IP or MAC conflict with another host.
func IsDuplicate(err error) bool {
	var de *DuplicateResourceError
	return errors.As(err, &de)
}
