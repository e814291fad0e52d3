// Package workerconfig loads the launcher file describing which worker
// processes a deployment expects to run, the {name, active} list the
// monitor dashboard merges against the NameService's live worker set so
// an operator can tell "configured but not running" apart from
// "running but unknown".
package workerconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Entry is one launcher-configured worker.
type Entry struct {
	Name   string `yaml:"name"`
	Active bool   `yaml:"active"`
}

// file is the on-disk shape: a bare list under a "workers" key.
type file struct {
	Workers []Entry `yaml:"workers"`
}

// Load reads a YAML worker launcher file from path. A missing file is
// not an error: it reports an empty list, since a deployment with no
// launcher file simply has nothing to merge against live workers.
func Load(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read worker config %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse worker config %s: %w", path, err)
	}

	return f.Workers, nil
}

// ActiveTypes returns the names of every entry marked active, the set a
// launcher would start workers for.
func ActiveTypes(entries []Entry) []string {
	active := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Active {
			active = append(active, e.Name)
		}
	}
	return active
}
