package entities

import (
	"fmt"
	"strings"
)

// EntityType is the closed set of investigation target kinds.
type EntityType string

const (
	EntityPublicCompany  EntityType = "public_company"
	EntityPrivateCompany EntityType = "private_company"
	EntityNonprofit      EntityType = "nonprofit"
	EntityIndividual     EntityType = "individual"
	EntityUnknown        EntityType = "unknown"
)

// ParseEntityType maps a tag onto EntityType, falling back to EntityUnknown.
func ParseEntityType(s string) EntityType {
	switch t := EntityType(strings.ToLower(strings.TrimSpace(s))); t {
	case EntityPublicCompany, EntityPrivateCompany, EntityNonprofit, EntityIndividual:
		return t
	default:
		return EntityUnknown
	}
}

// Entity is a canonical investigation target. Values are treated as read-only
// once built; use NewEntity so the identifier map and alias list are owned.
type Entity struct {
	ID           string            `json:"entity_id" yaml:"entity_id"`
	Name         string            `json:"name" yaml:"name"`
	Type         EntityType        `json:"entity_type" yaml:"entity_type"`
	Country      string            `json:"country,omitempty" yaml:"country,omitempty"`
	Jurisdiction string            `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`
	Identifiers  map[string]string `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`
	Aliases      []string          `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// NewEntity builds an Entity that does not alias the caller's map or slice.
func NewEntity(id, name string, typ EntityType, identifiers map[string]string, aliases []string) Entity {
	e := Entity{ID: id, Name: name, Type: typ}
	e.Identifiers = copyStrings(identifiers)
	if len(aliases) > 0 {
		e.Aliases = append([]string(nil), aliases...)
	}
	return e
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	out := e
	out.Identifiers = copyStrings(e.Identifiers)
	if e.Aliases != nil {
		out.Aliases = append([]string(nil), e.Aliases...)
	}
	return out
}

// Identifier returns the trimmed identifier for scheme, or "".
func (e Entity) Identifier(scheme string) string {
	if e.Identifiers == nil {
		return ""
	}
	return strings.TrimSpace(e.Identifiers[scheme])
}

// Validate checks the fields a registry entry must carry.
func (e Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entity id is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entity %s: name is required", e.ID)
	}
	return nil
}

func copyStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
