// Package config loads engine configuration validated against an
// embedded CUE schema. Missing fields take schema defaults; unknown
// fields and out-of-range values are errors, not warnings.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded engine configuration.
type Config struct {
	Database      string        `json:"database"`
	ContentDir    string        `json:"contentDir"`
	Qualification Qualification `json:"qualification"`
	Elo           Elo           `json:"elo"`
	Cascade       Cascade       `json:"cascade"`
	Merkle        Merkle        `json:"merkle"`
}

// Qualification is the mandate threshold policy.
type Qualification struct {
	Mode    string  `json:"mode"` // "wins" or "elo"
	MinWins int     `json:"minWins"`
	MinElo  float64 `json:"minElo"`
}

// Elo holds the rating constants.
type Elo struct {
	Base float64 `json:"base"`
	K    float64 `json:"k"`
}

// Cascade holds the walk guard.
type Cascade struct {
	MaxPositions int `json:"maxPositions"`
}

// Merkle holds trust-check parameters.
type Merkle struct {
	SampleSize int `json:"sampleSize"`
}

// Default returns the configuration with every schema default applied.
func Default() (Config, error) {
	return Load("")
}

// Load reads an optional CUE config file and unifies it with the
// embedded schema. An empty path yields pure defaults.
func Load(path string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config: compile schema: %w", err)
	}
	val := schema.LookupPath(cue.ParsePath("#Config"))
	if err := val.Err(); err != nil {
		return Config{}, fmt.Errorf("config: schema has no #Config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		user := ctx.CompileBytes(data, cue.Filename(path))
		if err := user.Err(); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		val = val.Unify(user)
		if err := val.Err(); err != nil {
			return Config{}, fmt.Errorf("config: %s does not satisfy schema: %w", path, err)
		}
	}

	if err := val.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}

	var cfg Config
	if err := val.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}
