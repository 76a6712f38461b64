package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_SystemFallsBack(t *testing.T) {
	s := Default()

	assert.Contains(t, s.System("diet"), "nutrition")
	assert.Equal(t, s.DefaultSystem, s.System("unknown"))
	assert.Equal(t, s.DefaultSystem, s.System("astrology"))
}

func TestMsg_Fill(t *testing.T) {
	s := Default()
	assert.Contains(t, s.Msg("model_selected", "model", "chatgpt"), "<b>chatgpt</b>")
	assert.Equal(t, "no_such_message", s.Msg("no_such_message"))
}

func TestParse_RejectsEmpty(t *testing.T) {
	_, err := Parse([]byte("intents: {}"))
	require.Error(t, err)
}
