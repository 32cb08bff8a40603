package commands

import "github.com/bwmarrin/discordgo"

// OwnerOnly allows only the configured owner.
func OwnerOnly(ownerID string) Check {
	return func(req Request) bool {
		return ownerID != "" && req.SenderID == ownerID
	}
}

// AdministratorOnly allows callers whose resolved permissions include
// Administrator. Unresolved permissions (e.g. direct messages) deny.
func AdministratorOnly() Check {
	return func(req Request) bool {
		if !req.PermissionsKnown {
			return false
		}
		return req.Permissions&discordgo.PermissionAdministrator != 0
	}
}
