package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TileID indexes a TerrainType inside a TerrainTable.
type TileID uint8

// TerrainType holds static properties of one tile kind, loaded from terrain_list.yaml.
type TerrainType struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Walkable bool     `yaml:"walkable"`
	Liquid   bool     `yaml:"liquid"`   // passable only by swimmers
	Hardness int      `yaml:"hardness"` // 0 = cannot be dug
	Drops    []string `yaml:"drops"`
}

type terrainListFile struct {
	Default string        `yaml:"default"`
	DugTo   string        `yaml:"dug_to"`
	Terrain []TerrainType `yaml:"terrain"`
}

// TerrainTable holds all terrain types indexed by TileID and by name.
type TerrainTable struct {
	types []TerrainType
	byID  map[string]TileID
	fill  TileID
	dugTo TileID
}

// LoadTerrainTable loads terrain types from a YAML file.
func LoadTerrainTable(path string) (*TerrainTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terrain_list: %w", err)
	}
	var f terrainListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse terrain_list: %w", err)
	}
	return NewTerrainTable(f.Terrain, f.Default, f.DugTo)
}

// NewTerrainTable builds a table from in-memory definitions. fill is the
// terrain new chunks default to; dugTo replaces a tile after it is dug.
func NewTerrainTable(types []TerrainType, fill, dugTo string) (*TerrainTable, error) {
	if len(types) == 0 || len(types) > 256 {
		return nil, fmt.Errorf("terrain table needs 1..256 entries, got %d", len(types))
	}
	t := &TerrainTable{
		types: make([]TerrainType, len(types)),
		byID:  make(map[string]TileID, len(types)),
	}
	copy(t.types, types)
	for i, tt := range t.types {
		if _, dup := t.byID[tt.ID]; dup {
			return nil, fmt.Errorf("duplicate terrain id %q", tt.ID)
		}
		t.byID[tt.ID] = TileID(i)
	}
	var ok bool
	if t.fill, ok = t.byID[fill]; !ok {
		return nil, fmt.Errorf("default terrain %q not defined", fill)
	}
	if t.dugTo, ok = t.byID[dugTo]; !ok {
		return nil, fmt.Errorf("dug_to terrain %q not defined", dugTo)
	}
	return t, nil
}

// Get returns the terrain type for id, or nil if out of range.
func (t *TerrainTable) Get(id TileID) *TerrainType {
	if int(id) >= len(t.types) {
		return nil
	}
	return &t.types[id]
}

// Lookup resolves a terrain name to its TileID.
func (t *TerrainTable) Lookup(name string) (TileID, bool) {
	id, ok := t.byID[name]
	return id, ok
}

func (t *TerrainTable) Fill() TileID  { return t.fill }
func (t *TerrainTable) DugTo() TileID { return t.dugTo }
func (t *TerrainTable) Count() int    { return len(t.types) }

// DefaultTerrain is the built-in wasteland terrain set.
func DefaultTerrain() *TerrainTable {
	t, err := NewTerrainTable([]TerrainType{
		{ID: "void", Name: "Void"},
		{ID: "wasteland_dirt", Name: "Wasteland Dirt", Walkable: true, Hardness: 2, Drops: []string{"dirt", "small_rocks"}},
		{ID: "cracked_pavement", Name: "Cracked Pavement", Walkable: true, Hardness: 4, Drops: []string{"concrete_chunk", "rebar"}},
		{ID: "rubble", Name: "Rubble", Hardness: 3, Drops: []string{"scrap_metal", "concrete_chunk", "brick"}},
		{ID: "toxic_water", Name: "Toxic Water", Liquid: true},
	}, "wasteland_dirt", "wasteland_dirt")
	if err != nil {
		panic(err)
	}
	return t
}
