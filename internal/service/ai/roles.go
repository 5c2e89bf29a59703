package ai

import (
	"github.com/cloudwego/eino/schema"

	"skychat/internal/models"
)

// senderRoles is the single source of truth for sender <-> model role.
// The gemini backend renders schema.Assistant as its "model" role.
var senderRoles = []struct {
	sender models.Sender
	role   schema.RoleType
}{
	{models.SenderUser, schema.User},
	{models.SenderBot, schema.Assistant},
}

// RoleForSender maps a stored sender onto the chat model role.
func RoleForSender(s models.Sender) (schema.RoleType, bool) {
	for _, m := range senderRoles {
		if m.sender == s {
			return m.role, true
		}
	}
	return "", false
}

// SenderForRole is the inverse of RoleForSender.
func SenderForRole(r schema.RoleType) (models.Sender, bool) {
	for _, m := range senderRoles {
		if m.role == r {
			return m.sender, true
		}
	}
	return "", false
}
