package uit

import (
	"errors"
	"fmt"
	"strings"
)

// transientFault marks a failure of the gateway's SSH tunnel to the login node. The tunnel is
// repaired on the gateway side, so the next attempt normally succeeds.
const transientFault = "DP Route error"

var (
	ErrNotConnected      = errors.New("must connect to system before running remote commands")
	ErrGatewayTimeout    = errors.New("gateway timeout")
	ErrLoginNodeNotFound = errors.New("login node not found in available nodes")
	ErrSystemNotFound    = errors.New("system not available to this user")
	ErrConnectTarget     = errors.New("specify exactly one of system or login node")
)

// CommandError is returned when the gateway reports a command or transfer as unsuccessful.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("uit command %q failed: %s", e.Command, e.Message)
}

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status code %d: %s", e.StatusCode, e.Body)
}

// MaxRetriesError is returned once every attempt of a call failed with a transient fault.
type MaxRetriesError struct {
	Method   string
	Args     []any
	Attempts int
	Err      error
}

func (e *MaxRetriesError) Error() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = fmt.Sprintf("%q", fmt.Sprint(a))
	}
	return fmt.Sprintf("max number of retries reached without success for method: %s(%s) after %d attempts; last error: %v",
		e.Method, strings.Join(args, ", "), e.Attempts, e.Err)
}

func (e *MaxRetriesError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is the gateway's recoverable routing fault.
func IsTransient(err error) bool {
	return err != nil && transientMessage(err.Error())
}

func transientMessage(message string) bool {
	return strings.Contains(message, transientFault)
}

func IsMaxRetries(err error) bool {
	var target *MaxRetriesError
	return errors.As(err, &target)
}
