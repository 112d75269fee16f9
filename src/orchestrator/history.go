package orchestrator

import (
	"fmt"
	"time"

	"github.com/elee1766/pagepilot/src/aisdk"
	"github.com/elee1766/pagepilot/src/storage"
)

// toAISDKMessages converts stored history for the model. System rows are
// dropped because the system prompt is rebuilt every turn.
func toAISDKMessages(msgs []storage.Message) []*aisdk.Message {
	out := make([]*aisdk.Message, 0, len(msgs))
	for _, msg := range msgs {
		m := &aisdk.Message{
			Content:   msg.Content,
			CreatedAt: time.UnixMilli(msg.Timestamp),
		}
		switch msg.Role {
		case storage.RoleUser:
			m.Role = aisdk.RoleUser
		case storage.RoleAssistant:
			m.Role = aisdk.RoleAssistant
		case storage.RoleFunction:
			// stored function output has no matching tool call id, so it is
			// replayed as assistant text
			m.Role = aisdk.RoleAssistant
			if msg.Name != nil && *msg.Name != "" {
				m.Content = fmt.Sprintf("[%s] %s", *msg.Name, msg.Content)
			}
		case storage.RoleSystem:
			continue
		default:
			continue
		}
		out = append(out, m)
	}
	return out
}
