package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pathwave/journey/pkg/profiles"
)

// NewProfileStore loads subject profiles from a JSON file keyed by subject
// id. An empty path yields an empty store; unknown subjects then resolve to
// empty profiles.
func NewProfileStore(path string) profiles.Store {
	if path == "" {
		return profiles.NewStaticStore(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("failed to read profiles file: %w", err))
	}

	var loaded map[string]map[string]any
	if err := json.Unmarshal(data, &loaded); err != nil {
		panic(fmt.Errorf("failed to decode profiles file: %w", err))
	}

	return profiles.NewStaticStore(loaded)
}
