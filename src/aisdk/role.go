package aisdk

import "fmt"

// Role identifies the author of a chat message sent to a model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
