// SPDX-License-Identifier: MPL-2.0

package serverbase

// Option configures a Base instance.
type Option func(*Base)

// WithObserver registers a callback invoked after every successful transition.
// The callback runs on the goroutine that performed the transition and must not block.
func WithObserver(fn func(from, to State)) Option {
	return func(b *Base) {
		b.observers = append(b.observers, fn)
	}
}
