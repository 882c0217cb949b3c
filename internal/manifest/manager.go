package manifest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/repokit/repokit/internal/errors"
	"github.com/repokit/repokit/internal/pkgver"
)

// manifestExt is the suffix of persisted manifest documents. Stored source
// files live in the same directory under their own versioned filenames.
const manifestExt = ".yml"

// Manager owns the manifest store: a flat directory of manifest documents
// and stored source files behind a billy.Filesystem. It is the exclusive
// mutation entry point for the store; server logic never touches the
// filesystem directly.
//
// Manager performs no locking. Serialization of mutating operations is the
// dispatcher's job: every command that touches the store executes on the
// single consumer goroutine.
type Manager struct {
	fs billy.Filesystem
}

// NewManager creates a manager over the given store filesystem, rooted at
// the store directory.
func NewManager(fs billy.Filesystem) *Manager {
	return &Manager{fs: fs}
}

// Exists reports whether any version of the package is present in the store.
// Version and extension segments in the argument are ignored.
func (m *Manager) Exists(name string) bool {
	base := pkgver.Base(name)
	for _, entry := range m.entries() {
		if isManifest(entry.Name()) && pkgver.Base(entry.Name()) == base {
			return true
		}
	}
	return false
}

// Latest returns the versioned package name with the highest version number
// among all stored versions of the package, comparing numerically.
func (m *Manager) Latest(name string) (string, error) {
	base := pkgver.Base(name)

	best := ""
	bestVersion := -1
	for _, entry := range m.entries() {
		if !isManifest(entry.Name()) || pkgver.Base(entry.Name()) != base {
			continue
		}
		version, err := pkgver.Of(entry.Name())
		if err != nil {
			continue // stray file with a non-numeric segment, not ours
		}
		if version > bestVersion {
			bestVersion = version
			best = strings.TrimSuffix(entry.Name(), manifestExt)
		}
	}

	if best == "" {
		return "", errors.NewNotFoundError("package_missing", "package not found").
			WithPackage(base)
	}
	return best, nil
}

// Write persists the manifest keyed by its versioned package name,
// atomically replacing any existing document of that exact versioned name.
func (m *Manager) Write(man Manifest) error {
	if !man.Status.Valid() {
		return errors.NewValidationError("bad_status",
			fmt.Sprintf("unknown status %q", man.Status)).WithPackage(man.Package)
	}

	pkgVersion, err := pkgver.Of(man.Package)
	if err != nil {
		return err
	}
	fileVersion, err := pkgver.Of(man.Filename)
	if err != nil {
		return err
	}
	if pkgVersion != fileVersion {
		return errors.NewValidationError("version_mismatch",
			fmt.Sprintf("filename %q does not carry the package version %d", man.Filename, pkgVersion)).
			WithPackage(man.Package)
	}

	data, err := man.Marshal()
	if err != nil {
		return err
	}

	m.ensure()

	// replace-on-write: a failed write never leaves a half-written manifest
	tmp, err := m.fs.TempFile("", "manifest-")
	if err != nil {
		return errors.NewStorageError("manifest_write", "failed to create manifest file", err).
			WithPackage(man.Package)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		m.fs.Remove(tmp.Name())
		return errors.NewStorageError("manifest_write", "failed to write manifest", err).
			WithPackage(man.Package)
	}
	if err := tmp.Close(); err != nil {
		m.fs.Remove(tmp.Name())
		return errors.NewStorageError("manifest_write", "failed to write manifest", err).
			WithPackage(man.Package)
	}
	if err := m.fs.Rename(tmp.Name(), man.Package+manifestExt); err != nil {
		m.fs.Remove(tmp.Name())
		return errors.NewStorageError("manifest_write", "failed to replace manifest", err).
			WithPackage(man.Package)
	}
	return nil
}

// Load reads the manifest of the given versioned package name.
func (m *Manager) Load(versioned string) (Manifest, error) {
	f, err := m.fs.Open(versioned + manifestExt)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, errors.NewNotFoundError("manifest_missing", "manifest not found").
				WithPackage(versioned)
		}
		return Manifest{}, errors.NewStorageError("manifest_read", "failed to open manifest", err).
			WithPackage(versioned)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Manifest{}, errors.NewStorageError("manifest_read", "failed to read manifest", err).
			WithPackage(versioned)
	}
	return Unmarshal(data)
}

// Delete removes the manifest of the given versioned package name. The
// versioned name becomes permanently unused; no new version takes its place.
func (m *Manager) Delete(versioned string) error {
	if err := m.fs.Remove(versioned + manifestExt); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("manifest_missing", "manifest not found").
				WithPackage(versioned)
		}
		return errors.NewStorageError("manifest_delete", "failed to delete manifest", err).
			WithPackage(versioned)
	}
	return nil
}

// All loads every manifest in the store, in storage-enumeration order.
// Callers must not assume any sorting.
func (m *Manager) All() ([]Manifest, error) {
	var manifests []Manifest
	for _, entry := range m.entries() {
		if !isManifest(entry.Name()) {
			continue
		}
		man, err := m.Load(strings.TrimSuffix(entry.Name(), manifestExt))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, man)
	}
	return manifests, nil
}

// SaveFile stores source file bytes under the given versioned filename,
// replacing any previous content.
func (m *Manager) SaveFile(name string, r io.Reader) (int64, error) {
	m.ensure()

	f, err := m.fs.Create(name)
	if err != nil {
		return 0, errors.NewStorageError("file_write", "failed to create stored file", err).
			WithContext("filename", name)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.fs.Remove(name)
		return n, errors.NewStorageError("file_write", "failed to write stored file", err).
			WithContext("filename", name)
	}
	return n, nil
}

// OpenFile opens a stored source file for reading.
func (m *Manager) OpenFile(name string) (io.ReadCloser, error) {
	f, err := m.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("file_missing", "stored file not found").
				WithContext("filename", name)
		}
		return nil, errors.NewStorageError("file_read", "failed to open stored file", err).
			WithContext("filename", name)
	}
	return f, nil
}

// entries lists the store directory. A missing store directory is
// self-healing: it is created on demand and reported as empty.
func (m *Manager) entries() []os.FileInfo {
	infos, err := m.fs.ReadDir(".")
	if err != nil {
		m.ensure()
		return nil
	}
	return infos
}

func (m *Manager) ensure() {
	m.fs.MkdirAll(".", 0o755)
}

func isManifest(name string) bool {
	return strings.HasSuffix(name, manifestExt)
}
