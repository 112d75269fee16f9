package aisdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"system", "user", "assistant", "tool"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, Role(s), r)
	}

	_, err := ParseRole("function")
	assert.Error(t, err)
}

func TestNewConversationCopiesMessages(t *testing.T) {
	msgs := []*Message{{Role: RoleUser, Content: "hi"}}
	conv := NewConversation("c1", "be nice", msgs)
	conv.Append(&Message{Role: RoleAssistant, Content: "hello"})

	assert.Len(t, msgs, 1)
	assert.Len(t, conv.Snapshot(), 2)
	assert.Equal(t, "be nice", conv.SystemPrompt)
}
