package discord

import "github.com/bwmarrin/discordgo"

// MemberHasRole reports whether member carries roleID. An empty roleID always
// passes.
func MemberHasRole(member *discordgo.Member, roleID string) bool {
	if roleID == "" {
		return true
	}
	if member == nil {
		return false
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

// RoleMention renders a role ping.
func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}
