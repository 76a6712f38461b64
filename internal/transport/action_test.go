package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAction(t *testing.T) {
	for a := ModelChatGPT; a <= AuthCancel; a++ {
		assert.Equal(t, a, ParseAction(a.String()), a.String())
	}
	assert.Equal(t, Unrecognized, ParseAction("auth_codelab_entered"))
	assert.Equal(t, Unrecognized, ParseAction(""))
	assert.Equal(t, "unrecognized", Unrecognized.String())
}

func TestCallbackDataFitsTelegramLimit(t *testing.T) {
	for a := ModelChatGPT; a <= AuthCancel; a++ {
		assert.LessOrEqual(t, len(a.String()), 64)
	}
}
