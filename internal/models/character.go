package models

import "github.com/google/uuid"

// CharacterRole tags the narrative function of a referenced character.
type CharacterRole string

const (
	RoleMissionGiver CharacterRole = "mission_giver"
	RoleVillain      CharacterRole = "villain"
	RolePartner      CharacterRole = "partner"
	RoleAlly         CharacterRole = "ally"
	RoleRandom       CharacterRole = "random"
)

// IsValid reports whether the role is known.
func (r CharacterRole) IsValid() bool {
	switch r {
	case RoleMissionGiver, RoleVillain, RolePartner, RoleAlly, RoleRandom:
		return true
	}
	return false
}

// CharacterSelection binds a character id to the role it plays in a mission.
// The core never mutates character data, only references it.
type CharacterSelection struct {
	CharacterID uuid.UUID     `json:"characterId"`
	Role        CharacterRole `json:"role"`
}

// CharacterSummary is the read-only projection of a character used to build
// generation context.
type CharacterSummary struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Role      CharacterRole `db:"-" json:"role"`
	Traits    []string      `db:"traits" json:"traits,omitempty"`
	Backstory string        `db:"backstory" json:"backstory,omitempty"`
}

// ValidateSelections checks the structural preconditions on a bootstrap's
// character selections: at least one selection, known roles, no duplicate
// character and no role assigned twice. Runs before any generation call.
func ValidateSelections(selections []CharacterSelection) error {
	if len(selections) == 0 {
		return ErrInvalidSelection
	}
	seenRoles := make(map[CharacterRole]struct{}, len(selections))
	seenIDs := make(map[uuid.UUID]struct{}, len(selections))
	for _, sel := range selections {
		if sel.CharacterID == uuid.Nil || !sel.Role.IsValid() {
			return ErrInvalidSelection
		}
		if _, dup := seenIDs[sel.CharacterID]; dup {
			return ErrInvalidSelection
		}
		seenIDs[sel.CharacterID] = struct{}{}
		// Multiple "random" slots are allowed; named roles are unique.
		if sel.Role == RoleRandom {
			continue
		}
		if _, dup := seenRoles[sel.Role]; dup {
			return ErrInvalidSelection
		}
		seenRoles[sel.Role] = struct{}{}
	}
	return nil
}
