package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ToolTemplate describes a starting tool.
type ToolTemplate struct {
	Kind       string `yaml:"kind"`
	Power      int    `yaml:"power"`
	Durability int    `yaml:"durability"`
}

// ActorTemplate holds static data for a spawnable actor loaded from YAML.
// Zero AP fields fall back to the server-wide action_points defaults.
type ActorTemplate struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Team              string        `yaml:"team"` // empty = neutral, never hostile
	HP                int32         `yaml:"hp"`
	APMaximum         int           `yaml:"ap_maximum"`
	APRegenRate       int           `yaml:"ap_regen_rate"`
	AttackDamage      int32         `yaml:"attack_damage"`
	AttackRange       int32         `yaml:"attack_range"`
	InventoryCapacity int           `yaml:"inventory_capacity"`
	CanSwim           bool          `yaml:"can_swim"`
	CanFly            bool          `yaml:"can_fly"`
	Wanders           bool          `yaml:"wanders"`
	Controlled        bool          `yaml:"controlled"` // driven by a player or network client
	Tool              *ToolTemplate `yaml:"tool"`
}

// SpawnEntry defines where and how many actors to spawn.
type SpawnEntry struct {
	Actor  string `yaml:"actor"`
	X      int32  `yaml:"x"`
	Y      int32  `yaml:"y"`
	Count  int    `yaml:"count"`
	Spread int32  `yaml:"spread"`
}

type actorListFile struct {
	Actors []ActorTemplate `yaml:"actors"`
}

type spawnListFile struct {
	Spawns []SpawnEntry `yaml:"spawns"`
}

// ActorTable holds all actor templates indexed by ID.
type ActorTable struct {
	templates map[string]*ActorTemplate
}

// LoadActorTable loads actor templates from a YAML file.
func LoadActorTable(path string) (*ActorTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read actor_list: %w", err)
	}
	var f actorListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse actor_list: %w", err)
	}
	return NewActorTable(f.Actors), nil
}

func NewActorTable(actors []ActorTemplate) *ActorTable {
	t := &ActorTable{templates: make(map[string]*ActorTemplate, len(actors))}
	for i := range actors {
		a := actors[i]
		t.templates[a.ID] = &a
	}
	return t
}

func (t *ActorTable) Get(id string) *ActorTemplate {
	return t.templates[id]
}

func (t *ActorTable) Count() int {
	return len(t.templates)
}

// LoadSpawnList loads spawn entries from a YAML file.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	return f.Spawns, nil
}
