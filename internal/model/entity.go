package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
)

// EntityType classifies a monitored target
type EntityType string

const (
	EntityCompany EntityType = "empresa"
	EntityPerson  EntityType = "pessoa"
	EntityFund    EntityType = "fund"
)

var EntityTypes = []EntityType{EntityCompany, EntityPerson, EntityFund}

func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EntityTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q (want empresa, pessoa or fund)", s)
}

// MonitoredEntity is a target (company, person or fund) subject to analysis.
// ID and CreatedAt are assigned by the backend.
type MonitoredEntity struct {
	ID         *int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string     `json:"name" yaml:"name"`
	EntityType EntityType `json:"entity_type" yaml:"entity_type"`
	CreatedAt  *time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Key returns the entity id, or 0 when it has not been assigned yet.
func (e MonitoredEntity) Key() int64 {
	if e.ID == nil {
		return 0
	}
	return *e.ID
}

func (e MonitoredEntity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errs.Validation("name", "entity name is required")
	}
	if _, err := ParseEntityType(string(e.EntityType)); err != nil {
		return errs.Validation("entity_type", err.Error())
	}
	return nil
}

// EntityNames returns the names of entities in order.
func EntityNames(entities []MonitoredEntity) []string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return names
}
