// Package pkgver manipulates version segments in package names and stored
// filenames.
//
// A versioned package name is "<base>.<version>" ("Widget.3"); a versioned
// filename keeps its extension around the version segment ("widget.3.cs").
// Versions are non-negative integers, monotonically increasing per package,
// starting at 1 for the first checkin. All functions are pure string
// transforms with no storage side effects.
package pkgver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/repokit/repokit/internal/errors"
)

// NextPackage returns the package name with its version incremented.
// A name with no version segment gets version 1.
func NextPackage(name string) (string, error) {
	dot := strings.Index(name, ".")
	if dot == -1 {
		return name + ".1", nil
	}

	base := name[:dot]
	version, err := parseVersion(name, name[dot+1:])
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%d", base, version+1), nil
}

// NextFile returns the filename with its version incremented, preserving the
// trailing extension. A filename with no version segment gets version 1.
// Only single-segment extensions are supported: in "archive.tar.gz" the
// middle segment reads as a version and fails to parse.
func NextFile(name string) (string, error) {
	first := strings.Index(name, ".")
	if first == -1 {
		return name + ".1", nil
	}

	last := strings.LastIndex(name, ".")
	if first == last {
		// single segment: numeric means a version, anything else an extension
		if v, err := strconv.Atoi(name[last+1:]); err == nil {
			return fmt.Sprintf("%s.%d", name[:last], v+1), nil
		}
		return name[:last] + ".1" + name[last:], nil
	}

	base := name[:first]
	ext := name[last:]
	version, err := parseVersion(name, name[first+1:last])
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%d%s", base, version+1, ext), nil
}

// Of extracts the version integer from a versioned package name or filename,
// ignoring any directory prefix. Names without a version segment yield 0; a
// non-numeric version segment is a parse error rather than a silent 0.
func Of(name string) (int, error) {
	name = stripDir(name)

	first := strings.Index(name, ".")
	if first == -1 {
		return 0, nil
	}

	last := strings.LastIndex(name, ".")
	if first == last {
		// single segment: a version for package names, an extension for files
		if v, err := strconv.Atoi(name[first+1:]); err == nil {
			return v, nil
		}
		return 0, nil
	}

	return parseVersion(name, name[first+1:last])
}

// Base strips any directory prefix, version segment and extension, leaving
// the bare package name.
func Base(name string) string {
	name = stripDir(name)
	if dot := strings.Index(name, "."); dot != -1 {
		return name[:dot]
	}
	return name
}

// StripFile removes the version segment from a versioned filename:
// "widget.3.cs" becomes "widget.cs". Filenames without a version segment are
// returned unchanged.
func StripFile(name string) string {
	first := strings.Index(name, ".")
	last := strings.LastIndex(name, ".")
	if first == -1 {
		return name
	}
	if first == last {
		if _, err := strconv.Atoi(name[first+1:]); err == nil {
			return name[:first]
		}
		return name
	}
	return name[:first] + name[last:]
}

// Versioned joins a base package name with a version number.
func Versioned(base string, version int) string {
	return fmt.Sprintf("%s.%d", base, version)
}

// VersionedFile inserts a version segment before the filename's extension.
// Filenames without an extension get the version appended.
func VersionedFile(name string, version int) string {
	last := strings.LastIndex(name, ".")
	if last == -1 {
		return fmt.Sprintf("%s.%d", name, version)
	}
	return fmt.Sprintf("%s.%d%s", name[:last], version, name[last:])
}

func parseVersion(name, segment string) (int, error) {
	v, err := strconv.Atoi(segment)
	if err != nil || v < 0 {
		return 0, errors.NewParseError("bad_version",
			fmt.Sprintf("malformed version segment %q in %q", segment, name))
	}
	return v, nil
}

func stripDir(name string) string {
	if idx := strings.LastIndexAny(name, `/\`); idx != -1 {
		return name[idx+1:]
	}
	return name
}
