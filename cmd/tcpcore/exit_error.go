// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/tcpcore/tcpcore/internal/config"
	"github.com/tcpcore/tcpcore/pkg/server"
	"github.com/tcpcore/tcpcore/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps an error returned by a command to the process exit code.
func exitCodeFor(err error) types.ExitCode {
	var exitErr *ExitError
	switch {
	case err == nil:
		return types.ExitOK
	case errors.As(err, &exitErr):
		if exitErr.Code.Validate() != nil || exitErr.Code.IsSuccess() {
			return types.ExitFailure
		}
		return exitErr.Code
	case errors.Is(err, server.ErrBind):
		return types.ExitBind
	case errors.Is(err, config.ErrInvalidConfig):
		return types.ExitConfig
	default:
		return types.ExitFailure
	}
}
