// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"github.com/tcpcore/tcpcore/pkg/codec"
)

type (
	// Configurator installs stages, a codec or a terminal into a fresh pipeline.
	// Configure must only wire; it must not perform blocking I/O.
	Configurator[I, O any] interface {
		Configure(p *Pipeline[I, O]) error
	}

	// ConfiguratorFunc adapts a function to the Configurator interface.
	ConfiguratorFunc[I, O any] func(p *Pipeline[I, O]) error

	// Composite applies its configurators in order and stops at the first error.
	Composite[I, O any] struct {
		steps []Configurator[I, O]
	}
)

// Configure calls fn(p).
func (fn ConfiguratorFunc[I, O]) Configure(p *Pipeline[I, O]) error { return fn(p) }

// Compose returns a configurator applying cfgs left to right. Nil entries are
// skipped and nested composites are flattened, so composition is associative.
func Compose[I, O any](cfgs ...Configurator[I, O]) *Composite[I, O] {
	c := &Composite[I, O]{}
	for _, cfg := range cfgs {
		switch v := cfg.(type) {
		case nil:
		case *Composite[I, O]:
			if v != nil {
				c.steps = append(c.steps, v.steps...)
			}
		default:
			c.steps = append(c.steps, cfg)
		}
	}
	return c
}

// Configure applies each step in order.
func (c *Composite[I, O]) Configure(p *Pipeline[I, O]) error {
	for _, step := range c.steps {
		if err := step.Configure(p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of flattened steps.
func (c *Composite[I, O]) Len() int { return len(c.steps) }

// Steps returns a copy of the flattened steps.
func (c *Composite[I, O]) Steps() []Configurator[I, O] {
	return append([]Configurator[I, O](nil), c.steps...)
}

// WithCodec returns a configurator installing c as the pipeline codec.
func WithCodec[I, O any](c codec.Codec[I, O]) Configurator[I, O] {
	return ConfiguratorFunc[I, O](func(p *Pipeline[I, O]) error {
		p.SetCodec(c)
		return nil
	})
}

// WithStage returns a configurator appending s under name.
func WithStage[I, O any](name string, s Stage) Configurator[I, O] {
	return ConfiguratorFunc[I, O](func(p *Pipeline[I, O]) error {
		return p.AddLast(name, s)
	})
}
