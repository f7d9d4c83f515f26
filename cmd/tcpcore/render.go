// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tcpcore/tcpcore/internal/issue"
)

// issueStyle is the glamour style used for issue guides.
var issueStyle = "dark"

// reportIssue prints what fang's one-line error omits: the suggestions and,
// in verbose mode, the error chain of an ActionableError, followed by the
// rendered guide of a linked issue.
func reportIssue(w io.Writer, err error, verbose bool) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}

	if details := strings.TrimPrefix(ae.Format(verbose), ae.Error()); strings.TrimSpace(details) != "" {
		fmt.Fprintln(w, WarningStyle.Render(strings.TrimLeft(details, "\n")))
	}

	iss := issue.FromError(err)
	if iss == nil {
		return
	}
	rendered, renderErr := iss.Render(issueStyle)
	if renderErr != nil {
		fmt.Fprintln(w, ErrorStyle.Render("cannot render issue guide: "+renderErr.Error()))
		return
	}
	fmt.Fprint(w, rendered)
}

// withIssueReport wraps a RunE so failures print their remediation details.
func withIssueReport(app *App, run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if err != nil {
			reportIssue(app.stderr, err, app.verbose)
		}
		return err
	}
}
