package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnsupportedPlatformReturnsFalse(t *testing.T) {
	assert.False(t, send("plan9", "title", "message", false))
	assert.False(t, send("windows", "title", "message", true))
}
