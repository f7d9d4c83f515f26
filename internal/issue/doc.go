// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. Issue pairs a well-known failure with Markdown guidance
// that the CLI renders for the user.
package issue
