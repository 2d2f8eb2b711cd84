package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseDefinition decodes a scenario definition from JSON and validates it.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, fmt.Errorf("validate scenario %s: %w", strings.TrimSpace(def.ID), err)
	}
	return def, nil
}
