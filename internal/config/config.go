// Package config defines the JSON job file of the kiesraad CLI and its
// validation.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Job is one extraction job.
type Job struct {
	// Name tags metrics ("job:<name>"). Defaults to "kiesraad".
	Name string `json:"job"`

	// Source is the directory holding the EML batch.
	Source string `json:"source"`

	PerCandidate bool `json:"per_candidate"`

	// ExcludeMarkers overrides the default upper-tier markers when present.
	// An empty list excludes nothing.
	ExcludeMarkers []string `json:"exclude_markers,omitempty"`

	Output  Output   `json:"output"`
	Storage *Storage `json:"storage,omitempty"`
	Metrics Metrics  `json:"metrics"`
}

// Output writes one CSV file per table into Dir.
type Output struct {
	Dir string `json:"dir"`
}

// Storage exports the tables into a database.
type Storage struct {
	Kind      string `json:"kind"` // sqlite | postgres | mssql
	DSN       string `json:"dsn"`
	Prefix    string `json:"table_prefix"`
	BatchSize int    `json:"batch_size"`
}

type Metrics struct {
	Backend string   `json:"backend"` // none | datadog
	Tags    []string `json:"tags"`
}

// StorageKinds are the backends the CLI links in.
var StorageKinds = []string{"sqlite", "postgres", "mssql"}

// MetricsBackends are the accepted metrics backend names.
var MetricsBackends = []string{"", "none", "noop", "datadog", "dd"}

// Parse decodes a job file. Unknown fields are rejected and environment
// references in DSNs are expanded.
func Parse(raw []byte) (Job, error) {
	var j Job
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return Job{}, err
	}
	if j.Storage != nil {
		j.Storage.DSN = os.ExpandEnv(j.Storage.DSN)
	}
	return j, nil
}

// Load reads and parses the job file at path.
func Load(path string) (Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read config: %w", err)
	}
	j, err := Parse(raw)
	if err != nil {
		return Job{}, fmt.Errorf("parse config: %w", err)
	}
	return j, nil
}
