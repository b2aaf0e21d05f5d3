package relax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitEscalates(t *testing.T) {
	var attempts uint
	for i := 0; i < 7; i++ {
		next := Wait(attempts)
		assert.Equal(t, attempts+1, next)
		attempts = next
	}

	// Once past the busy-loop phase the counter stays put and the call
	// yields instead.
	assert.Equal(t, attempts, Wait(attempts))
}
