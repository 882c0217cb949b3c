// Package manifest implements the persisted metadata records of the
// repository and the manager that owns their lifecycle.
//
// One manifest file exists per versioned package ("Widget.3"), holding the
// owning user (the responsible individual), the lifecycle status, the stored
// filename and the ordered dependency list. The Manager is the only mutation
// entry point for the store; all updates are copy-on-write through Write.
// The store itself is the single source of truth: nothing is cached across
// requests, every lookup re-scans storage.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/repokit/repokit/internal/errors"
	"github.com/repokit/repokit/internal/pkgver"
)

// Status is the lifecycle state of a versioned package.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusPending Status = "pending"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusPending:
		return true
	}
	return false
}

// ParseStatus maps a payload string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", errors.NewParseError("bad_status", fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

// Manifest is the persisted metadata record for one versioned package.
// It is treated as a value: updates construct a modified copy and hand it to
// the Manager for persistence.
type Manifest struct {
	Package      string   `yaml:"package"`
	RI           string   `yaml:"ri"`
	Status       Status   `yaml:"status"`
	Filename     string   `yaml:"filename"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// New constructs a manifest. The dependency list is copied so callers cannot
// alias the stored slice.
func New(pkg, ri string, status Status, filename string, deps []string) Manifest {
	return Manifest{
		Package:      pkg,
		RI:           ri,
		Status:       status,
		Filename:     filename,
		Dependencies: cloneDeps(deps),
	}
}

// Base returns the unversioned package name.
func (m Manifest) Base() string {
	return pkgver.Base(m.Package)
}

// Version returns the version number of this manifest's package name.
func (m Manifest) Version() (int, error) {
	return pkgver.Of(m.Package)
}

// WithStatus returns a copy of the manifest with the given status.
func (m Manifest) WithStatus(status Status) Manifest {
	c := m
	c.Dependencies = cloneDeps(m.Dependencies)
	c.Status = status
	return c
}

// WithDependencies returns a copy of the manifest with the given
// dependency list.
func (m Manifest) WithDependencies(deps []string) Manifest {
	c := m
	c.Dependencies = cloneDeps(deps)
	return c
}

// DependsOn reports whether the manifest lists the versioned package name as
// a dependency.
func (m Manifest) DependsOn(versioned string) bool {
	for _, dep := range m.Dependencies {
		if dep == versioned {
			return true
		}
	}
	return false
}

// Marshal serializes the manifest document.
func (m Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.NewInternalError("manifest_encode", "failed to encode manifest", err).
			WithPackage(m.Package)
	}
	return data, nil
}

// Unmarshal parses a manifest document.
func Unmarshal(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.NewParseError("manifest_decode", "malformed manifest document").
			WithCause(err)
	}
	if m.Status != "" && !m.Status.Valid() {
		return Manifest{}, errors.NewParseError("bad_status",
			fmt.Sprintf("unknown status %q", m.Status)).WithPackage(m.Package)
	}
	return m, nil
}

func cloneDeps(deps []string) []string {
	if deps == nil {
		return nil
	}
	c := make([]string, len(deps))
	copy(c, deps)
	return c
}
