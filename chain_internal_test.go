// (c) Copyright IBM Corp. 2024

package dbwrap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type traceLink struct {
	name  string
	trace *[]string
}

func linkTrace(ic traceLink, next Action) Action {
	return func() error {
		*ic.trace = append(*ic.trace, ic.name+" before")
		err := next()
		*ic.trace = append(*ic.trace, ic.name+" after")

		return err
	}
}

func traceLinks(n int, trace *[]string) []traceLink {
	links := make([]traceLink, n)
	for i := range links {
		links[i] = traceLink{name: fmt.Sprintf("ic%d", i), trace: trace}
	}

	return links
}

func TestCompose_Order(t *testing.T) {
	for n := 0; n <= 12; n++ {
		t.Run(fmt.Sprintf("%d interceptors", n), func(t *testing.T) {
			var trace, expected []string

			for i := 0; i < n; i++ {
				expected = append(expected, fmt.Sprintf("ic%d before", i))
			}
			expected = append(expected, "terminal")
			for i := n - 1; i >= 0; i-- {
				expected = append(expected, fmt.Sprintf("ic%d after", i))
			}

			call := compose(traceLinks(n, &trace), Action(func() error {
				trace = append(trace, "terminal")
				return nil
			}), linkTrace)

			assert.NoError(t, call())
			assert.Equal(t, expected, trace)
		})
	}
}

func TestCompose_NoInterceptorsReturnsTerminal(t *testing.T) {
	var called int
	terminal := Action(func() error {
		called++
		return nil
	})

	call := compose[traceLink](nil, terminal, linkTrace)
	assert.NoError(t, call())
	assert.Equal(t, 1, called)
}

func TestCompose_NineMatchesEightNestedOnceMore(t *testing.T) {
	var nine, nested []string

	terminal := func(trace *[]string) Action {
		return func() error {
			*trace = append(*trace, "terminal")
			return nil
		}
	}

	assert.NoError(t, compose(traceLinks(9, &nine), terminal(&nine), linkTrace)())

	links := traceLinks(9, &nested)
	inner := linkTrace(links[8], terminal(&nested))
	assert.NoError(t, compose(links[:8], inner, linkTrace)())

	assert.Equal(t, nested, nine)
}

type repeating struct{}

func (repeating) RepeatsContinuation() bool { return true }

func TestContinuationGuard(t *testing.T) {
	t.Run("single use", func(t *testing.T) {
		g := newContinuationGuard(struct{}{})
		assert.NoError(t, g.enter())
		assert.ErrorIs(t, g.enter(), ErrContinuationReused)
	})

	t.Run("repeater", func(t *testing.T) {
		g := newContinuationGuard(repeating{})
		for i := 0; i < 3; i++ {
			assert.NoError(t, g.enter())
		}
	})
}
