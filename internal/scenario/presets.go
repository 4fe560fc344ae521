package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/studiowebux/chatload/internal/types"
)

// Presets are the named run shapes
var Presets = map[string]types.Preset{
	"spike": {
		Name:        "spike",
		Users:       50,
		SpawnRate:   10,
		RunTime:     "2m",
		Description: "Many users in a short time",
	},
	"load": {
		Name:        "load",
		Users:       20,
		SpawnRate:   2,
		RunTime:     "10m",
		Description: "Sustained steady load",
	},
	"endurance": {
		Name:        "endurance",
		Users:       10,
		SpawnRate:   1,
		RunTime:     "30m",
		Description: "Long steady load",
	},
}

// PresetNames returns the preset names in alphabetical order
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset finds a preset by name (case-insensitive)
func LookupPreset(name string) (types.Preset, error) {
	p, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return types.Preset{}, fmt.Errorf("unknown preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}
