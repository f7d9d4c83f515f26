// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/tcpcore/tcpcore/pkg/codec"

	"golang.org/x/exp/slices"
)

var (
	// ErrNoTerminal is returned by Serve when no terminal was attached.
	ErrNoTerminal = errors.New("pipeline has no terminal")
	// ErrDuplicateStage is the sentinel error wrapped by DuplicateStageError.
	ErrDuplicateStage = errors.New("duplicate stage name")
	// ErrTerminalAttached is returned when a second terminal is attached.
	ErrTerminalAttached = errors.New("pipeline terminal already attached")
)

type (
	// Stage transforms the byte stream of a connection by wrapping it.
	// A stage must not perform blocking I/O in Wrap.
	Stage interface {
		Wrap(conn net.Conn) (net.Conn, error)
	}

	// StageFunc adapts a function to the Stage interface.
	StageFunc func(conn net.Conn) (net.Conn, error)

	// Terminal consumes a connection once every stage has wrapped it.
	// The codec is nil when no configurator installed one.
	Terminal[I, O any] func(ctx context.Context, conn net.Conn, c codec.Codec[I, O]) error

	// Pipeline is the per-connection processing chain.
	Pipeline[I, O any] struct {
		stages   []namedStage
		codec    codec.Codec[I, O]
		terminal Terminal[I, O]
	}

	// DuplicateStageError is returned when a stage name is already present.
	DuplicateStageError struct {
		Name string
	}

	namedStage struct {
		name  string
		stage Stage
	}
)

// Wrap calls fn(conn).
func (fn StageFunc) Wrap(conn net.Conn) (net.Conn, error) { return fn(conn) }

// New returns an empty pipeline.
func New[I, O any]() *Pipeline[I, O] {
	return &Pipeline[I, O]{}
}

// AddLast appends a stage. Stages added later sit further from the socket.
func (p *Pipeline[I, O]) AddLast(name string, s Stage) error {
	if p.index(name) >= 0 {
		return &DuplicateStageError{Name: name}
	}
	p.stages = append(p.stages, namedStage{name: name, stage: s})
	return nil
}

// AddFirst inserts a stage next to the socket.
func (p *Pipeline[I, O]) AddFirst(name string, s Stage) error {
	if p.index(name) >= 0 {
		return &DuplicateStageError{Name: name}
	}
	p.stages = slices.Insert(p.stages, 0, namedStage{name: name, stage: s})
	return nil
}

// Remove deletes the named stage and reports whether it was present.
func (p *Pipeline[I, O]) Remove(name string) bool {
	i := p.index(name)
	if i < 0 {
		return false
	}
	p.stages = slices.Delete(p.stages, i, i+1)
	return true
}

// Get returns the named stage.
func (p *Pipeline[I, O]) Get(name string) (Stage, bool) {
	i := p.index(name)
	if i < 0 {
		return nil, false
	}
	return p.stages[i].stage, true
}

// Names returns stage names from the socket outwards.
func (p *Pipeline[I, O]) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.name
	}
	return names
}

// Len returns the number of stages.
func (p *Pipeline[I, O]) Len() int { return len(p.stages) }

// SetCodec installs the message codec, replacing any previous one.
func (p *Pipeline[I, O]) SetCodec(c codec.Codec[I, O]) { p.codec = c }

// Codec returns the installed codec or nil.
func (p *Pipeline[I, O]) Codec() codec.Codec[I, O] { return p.codec }

// Attach sets the terminal. A pipeline has exactly one terminal.
func (p *Pipeline[I, O]) Attach(t Terminal[I, O]) error {
	if t == nil {
		return fmt.Errorf("attach terminal: %w", ErrNoTerminal)
	}
	if p.terminal != nil {
		return ErrTerminalAttached
	}
	p.terminal = t
	return nil
}

// Detach removes and returns the terminal, nil if none was attached.
func (p *Pipeline[I, O]) Detach() Terminal[I, O] {
	t := p.terminal
	p.terminal = nil
	return t
}

// Attached reports whether a terminal is set.
func (p *Pipeline[I, O]) Attached() bool { return p.terminal != nil }

// Serve wraps conn with every stage in order and runs the terminal.
func (p *Pipeline[I, O]) Serve(ctx context.Context, conn net.Conn) error {
	if p.terminal == nil {
		return ErrNoTerminal
	}
	wrapped, err := p.Wrap(conn)
	if err != nil {
		return err
	}
	return p.terminal(ctx, wrapped, p.codec)
}

// Wrap applies the stages to conn without running the terminal.
// Client connections use this to share server-side stage configuration.
func (p *Pipeline[I, O]) Wrap(conn net.Conn) (net.Conn, error) {
	wrapped := conn
	for _, s := range p.stages {
		next, err := s.stage.Wrap(wrapped)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.name, err)
		}
		wrapped = next
	}
	return wrapped, nil
}

func (p *Pipeline[I, O]) index(name string) int {
	return slices.IndexFunc(p.stages, func(s namedStage) bool { return s.name == name })
}

// Error implements the error interface for DuplicateStageError.
func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("stage %q already present in pipeline", e.Name)
}

// Unwrap returns ErrDuplicateStage for errors.Is() compatibility.
func (e *DuplicateStageError) Unwrap() error { return ErrDuplicateStage }
