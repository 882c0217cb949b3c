package protocol

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/repokit/repokit/internal/errors"
)

// NoFile is the sentinel value for filename/filepath in a checkin payload
// meaning "metadata-only update, no file transfer".
const NoFile = "-1"

// CheckinPayload is the document carried in the Text of a CheckIn message.
type CheckinPayload struct {
	// Package is the unversioned package name being checked in.
	Package string `yaml:"package"`
	// RI is the responsible individual who owns the checkin.
	RI string `yaml:"ri"`
	// Status is the requested status, "open" or "closed". Pending cannot be
	// requested; it is only ever induced by unresolved dependencies.
	Status string `yaml:"status"`
	// Filename is the name the source file is stored under, or NoFile.
	Filename string `yaml:"filename"`
	// Filepath is the client-local path the server fetches the file from,
	// or NoFile.
	Filepath string `yaml:"filepath"`
	// Dependencies lists versioned package names, in order, duplicates kept
	// as given.
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// HasFile reports whether the payload supplies a source file to transfer.
func (p CheckinPayload) HasFile() bool {
	return p.Filepath != NoFile && p.Filepath != ""
}

// Encode serializes the payload for embedding in a Message.
func (p CheckinPayload) Encode() (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", errors.NewInternalError("payload_encode", "failed to encode checkin payload", err)
	}
	return string(data), nil
}

// ParseCheckinPayload parses and validates a checkin document.
func ParseCheckinPayload(text string) (CheckinPayload, error) {
	var p CheckinPayload
	if err := yaml.Unmarshal([]byte(text), &p); err != nil {
		return CheckinPayload{}, errors.NewParseError("payload_decode", "malformed checkin payload").
			WithCause(err)
	}
	if p.Package == "" {
		return CheckinPayload{}, errors.NewValidationError("missing_package", "checkin payload names no package")
	}
	if p.RI == "" {
		return CheckinPayload{}, errors.NewValidationError("missing_user", "checkin payload names no responsible individual")
	}
	if p.Status != "open" && p.Status != "closed" {
		return CheckinPayload{}, errors.NewValidationError("bad_checkin_status",
			fmt.Sprintf("requested status must be open or closed, got %q", p.Status))
	}
	if p.HasFile() && (p.Filename == NoFile || p.Filename == "") {
		return CheckinPayload{}, errors.NewValidationError("missing_filename",
			"checkin payload supplies a filepath but no filename")
	}
	return p, nil
}

// VersionEntry is one version of a package in a listing.
type VersionEntry struct {
	Number       int      `yaml:"number"`
	Status       string   `yaml:"status"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// PackageEntry groups all versions of one package base name.
type PackageEntry struct {
	Name     string         `yaml:"name"`
	Versions []VersionEntry `yaml:"versions"`
}

// PackageListDoc is the document carried in the Text of a PackageList
// message. Entry order is storage-enumeration order, not sorted.
type PackageListDoc struct {
	Packages []PackageEntry `yaml:"packages"`
}

// Encode serializes the listing for embedding in a Message.
func (d PackageListDoc) Encode() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", errors.NewInternalError("list_encode", "failed to encode package list", err)
	}
	return string(data), nil
}

// ParsePackageList parses a package-list document.
func ParsePackageList(text string) (PackageListDoc, error) {
	var d PackageListDoc
	if err := yaml.Unmarshal([]byte(text), &d); err != nil {
		return PackageListDoc{}, errors.NewParseError("list_decode", "malformed package list").
			WithCause(err)
	}
	return d, nil
}
