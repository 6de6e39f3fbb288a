// Package drivedb loads a toml-encoded vendor/model database used to
// enrich recommend_method's human-readable rationale string. Adapted from
// the teacher's drivedb package: the original cgo generator that scraped
// smartmontools' drivedb.h is dropped (no C header in this repo, and it
// built a one-off generator tool rather than a runtime component); the
// toml schema and loader are kept and repurposed as a lookup table.
package drivedb

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Model is one vendor/family entry, matched against a probed device's
// model string via ModelRegex.
type Model struct {
	Family     string `toml:"Family"`
	ModelRegex string `toml:"ModelRegex"`
	WarningMsg string `toml:"WarningMsg"`
}

// DB is a loaded drive database.
type DB struct {
	Drives []Model `toml:"Drives"`
}

// Load reads a toml drive database from path.
func Load(path string) (*DB, error) {
	var db DB
	if _, err := toml.DecodeFile(path, &db); err != nil {
		return nil, fmt.Errorf("load drivedb %s: %w", path, err)
	}
	return &db, nil
}

// LoadOptional behaves like Load but returns (nil, nil) when path does not
// exist, since the drive database is an optional rationale enhancement,
// never a requirement for recommend_method to function.
func LoadOptional(path string) (*DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return Load(path)
}

// Lookup returns the family name of the first entry whose ModelRegex
// matches model, if any.
func (db *DB) Lookup(model string) (string, bool) {
	if db == nil {
		return "", false
	}
	for _, d := range db.Drives {
		re, err := regexp.Compile(d.ModelRegex)
		if err != nil {
			continue
		}
		if re.MatchString(model) {
			return d.Family, true
		}
	}
	return "", false
}
