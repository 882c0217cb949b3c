// Package server implements the repository's processing engine: the
// per-request business logic (Proc), the single-consumer message dispatcher
// (Service), and the inbound HTTP endpoint feeding it.
//
// All operations that read or write the manifest store run strictly
// one-at-a-time on the dispatcher goroutine, in the order their messages
// were enqueued. That serialization, not locking, is what keeps the
// close-cascade and dependency-rewrite algorithms correct.
package server

import (
	"context"
	"fmt"

	"github.com/repokit/repokit/internal/client"
	"github.com/repokit/repokit/internal/errors"
	"github.com/repokit/repokit/internal/logging"
	"github.com/repokit/repokit/internal/manifest"
	"github.com/repokit/repokit/internal/pkgver"
	"github.com/repokit/repokit/internal/protocol"
)

// Proc carries out one client request against the manifest store, talking
// back to the client over its callback channel. A Proc lives for a single
// operation; the dispatcher constructs one per message.
//
// Proc never touches manifest storage directly, only through the Manager.
// On every path, store mutations complete before any client-facing
// notification is sent, so notifications reflect committed state.
type Proc struct {
	store  *manifest.Manager
	ch     client.Channel
	logger logging.Logger
}

// NewProc builds a Proc for one operation.
func NewProc(store *manifest.Manager, ch client.Channel, logger logging.Logger) *Proc {
	return &Proc{store: store, ch: ch, logger: logger}
}

// Checkin processes a CheckIn message: a new package gets version 1, an
// existing one is revised in place (while open) or gets the next version
// (once closed or pending). A requested "closed" status triggers the
// close-cascade. Rejections are returned as errors; the dispatcher turns
// them into status messages.
func (p *Proc) Checkin(ctx context.Context, msg protocol.Message) error {
	payload, err := protocol.ParseCheckinPayload(msg.Text)
	if err != nil {
		return err
	}

	if p.store.Exists(payload.Package) {
		return p.checkinExisting(ctx, payload)
	}
	return p.checkinNew(ctx, payload)
}

// checkinNew allocates version 1 and stores manifest and file.
func (p *Proc) checkinNew(ctx context.Context, payload protocol.CheckinPayload) error {
	versioned, err := pkgver.NextPackage(payload.Package)
	if err != nil {
		return err
	}

	filename := ""
	if payload.Filename != protocol.NoFile && payload.Filename != "" {
		filename, err = pkgver.NextFile(payload.Filename)
		if err != nil {
			return err
		}
	} else {
		// metadata-only checkin with no filename at all
		filename = pkgver.Versioned(payload.Package, 1)
	}
	if payload.HasFile() {
		if err := p.download(ctx, payload.Filepath, filename); err != nil {
			return err
		}
	}

	man := manifest.New(versioned, payload.RI, manifest.StatusOpen, filename, payload.Dependencies)
	if err := p.store.Write(man); err != nil {
		return err
	}

	p.logger.Info(ctx, "new package checked in", "package", versioned, "user", payload.RI)

	if payload.Status == "closed" {
		return p.close(ctx, versioned)
	}
	return p.notifyCheckedIn(ctx, versioned, manifest.StatusOpen)
}

// checkinExisting revises the latest version in place while it is open, or
// allocates the next version once it is closed or pending.
func (p *Proc) checkinExisting(ctx context.Context, payload protocol.CheckinPayload) error {
	latest, err := p.store.Latest(payload.Package)
	if err != nil {
		return err
	}
	last, err := p.store.Load(latest)
	if err != nil {
		return err
	}

	if last.RI != payload.RI {
		return errors.NewValidationError("ownership_mismatch",
			"package already exists under a different responsible individual; use a different package name").
			WithPackage(payload.Package)
	}

	if last.Status == manifest.StatusOpen {
		// in-place revision of the open version
		if payload.HasFile() {
			if err := p.download(ctx, payload.Filepath, last.Filename); err != nil {
				return err
			}
		}
		if err := p.store.Write(last.WithDependencies(payload.Dependencies)); err != nil {
			return err
		}

		p.logger.Info(ctx, "open package revised", "package", last.Package, "user", payload.RI)

		if payload.Status == "closed" {
			return p.close(ctx, last.Package)
		}
		return p.notifyCheckedIn(ctx, last.Package, manifest.StatusOpen)
	}

	// closed or pending: allocate the next version
	nextPkg, err := pkgver.NextPackage(last.Package)
	if err != nil {
		return err
	}
	nextFile, err := pkgver.NextFile(last.Filename)
	if err != nil {
		return err
	}

	if payload.HasFile() {
		if err := p.download(ctx, payload.Filepath, nextFile); err != nil {
			return err
		}
	} else if err := p.copyStoredFile(last.Filename, nextFile); err != nil {
		return err
	}

	man := manifest.New(nextPkg, payload.RI, manifest.StatusOpen, nextFile, payload.Dependencies)
	if err := p.store.Write(man); err != nil {
		return err
	}

	p.logger.Info(ctx, "new package version checked in", "package", nextPkg, "user", payload.RI)

	if payload.Status == "closed" {
		return p.close(ctx, nextPkg)
	}
	return p.notifyCheckedIn(ctx, nextPkg, manifest.StatusOpen)
}

// close runs the close-cascade for one versioned package.
//
// The package commits to closed only if every dependency is already closed.
// A pending dependency that in turn depends on the package being closed is
// closed immediately, breaking a mutual-pending cycle. Afterwards every
// manifest currently pending on the just-closed name is flipped to closed —
// a single-hop cascade: dependents of the flipped manifests are not
// re-evaluated in the same pass.
func (p *Proc) close(ctx context.Context, versioned string) error {
	man, err := p.store.Load(versioned)
	if err != nil {
		return err
	}

	outcome := manifest.StatusClosed
	for _, dep := range man.Dependencies {
		depMan, err := p.store.Load(dep)
		if err != nil {
			if errors.IsNotFound(err) {
				// a dependency with no manifest cannot be known closed
				p.logger.Warn(ctx, err, "dependency manifest missing during close",
					"package", versioned, "dependency", dep)
				outcome = manifest.StatusPending
				continue
			}
			return err
		}

		switch depMan.Status {
		case manifest.StatusClosed:
			// no effect on the outcome
		case manifest.StatusPending:
			if depMan.DependsOn(versioned) {
				// mutual pending: the dependency was only waiting on us
				if err := p.store.Write(depMan.WithStatus(manifest.StatusClosed)); err != nil {
					return err
				}
				p.logger.Info(ctx, "mutually pending dependency closed",
					"package", versioned, "dependency", dep)
			} else {
				outcome = manifest.StatusPending
			}
		case manifest.StatusOpen:
			outcome = manifest.StatusPending
		}
	}

	if err := p.store.Write(man.WithStatus(outcome)); err != nil {
		return err
	}

	p.logger.Info(ctx, "close processed", "package", versioned, "outcome", string(outcome))

	if err := p.cascadePending(ctx, versioned); err != nil {
		return err
	}

	if err := p.PublishList(ctx); err != nil {
		return err
	}
	return p.ch.Post(ctx, protocol.StatusMessage(
		fmt.Sprintf("package %s checked in as %s", versioned, outcome)))
}

// cascadePending flips every manifest currently pending on the given name
// directly to closed. Single hop: packages pending on the flipped ones are
// left for a later close call.
func (p *Proc) cascadePending(ctx context.Context, versioned string) error {
	all, err := p.store.All()
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.Package == versioned || other.Status != manifest.StatusPending {
			continue
		}
		if !other.DependsOn(versioned) {
			continue
		}
		if err := p.store.Write(other.WithStatus(manifest.StatusClosed)); err != nil {
			return err
		}
		p.logger.Info(ctx, "pending package closed by cascade",
			"package", other.Package, "trigger", versioned)
	}
	return nil
}

// Cancel deletes the latest version of a package, provided it is open and
// the requesting user owns it, then removes the cancelled versioned name
// from every other manifest's dependency list.
func (p *Proc) Cancel(ctx context.Context, pkg, user string) error {
	if !p.store.Exists(pkg) {
		return errors.NewNotFoundError("package_missing", "package not found").
			WithPackage(pkgver.Base(pkg))
	}

	latest, err := p.store.Latest(pkg)
	if err != nil {
		return err
	}
	man, err := p.store.Load(latest)
	if err != nil {
		return err
	}

	if man.Status != manifest.StatusOpen {
		return errors.NewValidationError("wrong_status",
			"only packages checked in as open can be cancelled").WithPackage(latest)
	}
	if man.RI != user {
		return errors.NewValidationError("ownership_mismatch",
			"only the responsible individual of a package can cancel its check-in").
			WithPackage(latest)
	}

	if err := p.store.Delete(latest); err != nil {
		return err
	}
	if err := p.removeFromDependencies(ctx, latest); err != nil {
		return err
	}

	p.logger.Info(ctx, "checkin cancelled", "package", latest, "user", user)

	if err := p.PublishList(ctx); err != nil {
		return err
	}
	return p.ch.Post(ctx, protocol.StatusMessage(
		fmt.Sprintf("package %s removed from repository", latest)))
}

// removeFromDependencies rewrites every manifest whose dependency list names
// the cancelled versioned package.
func (p *Proc) removeFromDependencies(ctx context.Context, versioned string) error {
	all, err := p.store.All()
	if err != nil {
		return err
	}
	for _, man := range all {
		if !man.DependsOn(versioned) {
			continue
		}
		kept := make([]string, 0, len(man.Dependencies))
		for _, dep := range man.Dependencies {
			if dep != versioned {
				kept = append(kept, dep)
			}
		}
		if err := p.store.Write(man.WithDependencies(kept)); err != nil {
			return err
		}
	}
	return nil
}

// PublishList assembles the full package listing and posts it to the client.
// Packages and versions appear in storage-enumeration order.
func (p *Proc) PublishList(ctx context.Context) error {
	all, err := p.store.All()
	if err != nil {
		return err
	}

	doc := protocol.PackageListDoc{}
	index := make(map[string]int)
	for _, man := range all {
		base := man.Base()
		i, seen := index[base]
		if !seen {
			doc.Packages = append(doc.Packages, protocol.PackageEntry{Name: base})
			i = len(doc.Packages) - 1
			index[base] = i
		}

		version, err := man.Version()
		if err != nil {
			return err
		}
		doc.Packages[i].Versions = append(doc.Packages[i].Versions, protocol.VersionEntry{
			Number:       version,
			Status:       string(man.Status),
			Dependencies: man.Dependencies,
		})
	}

	text, err := doc.Encode()
	if err != nil {
		return err
	}
	return p.ch.Post(ctx, protocol.Message{Command: protocol.CommandPackageList, Text: text})
}

// FileRequest streams a single stored file to the client, with the version
// segment stripped from its name.
func (p *Proc) FileRequest(ctx context.Context, versioned string) error {
	man, err := p.store.Load(versioned)
	if err != nil {
		return err
	}

	if err := p.sendStoredFile(ctx, man); err != nil {
		return err
	}
	return p.ch.Post(ctx, protocol.StatusMessage(
		fmt.Sprintf("file %s sent", pkgver.StripFile(man.Filename))))
}

// Extract streams the component rooted at the requested package: the
// package's file plus the files of its full transitive dependency set, each
// exactly once. A missing manifest for a queued dependency is skipped rather
// than failing the extraction; the sent-set makes cycles harmless.
func (p *Proc) Extract(ctx context.Context, versioned string) error {
	if _, err := p.store.Load(versioned); err != nil {
		return err
	}

	todo := []string{versioned}
	sent := make(map[string]bool)
	for len(todo) > 0 {
		name := todo[0]
		todo = todo[1:]
		if sent[name] {
			continue
		}

		man, err := p.store.Load(name)
		if err != nil {
			if errors.IsNotFound(err) {
				p.logger.Warn(ctx, err, "dependency skipped during extraction",
					"root", versioned, "dependency", name)
				sent[name] = true
				continue
			}
			return err
		}

		if err := p.sendStoredFile(ctx, man); err != nil {
			return err
		}
		sent[name] = true

		for _, dep := range man.Dependencies {
			if !sent[dep] {
				todo = append(todo, dep)
			}
		}
	}

	return p.ch.Post(ctx, protocol.StatusMessage(
		fmt.Sprintf("component %s extracted", versioned)))
}

// sendStoredFile streams one stored file over the callback channel under its
// version-stripped name.
func (p *Proc) sendStoredFile(ctx context.Context, man manifest.Manifest) error {
	f, err := p.store.OpenFile(man.Filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return p.ch.SendFile(ctx, pkgver.StripFile(man.Filename), f)
}

// download pulls a file from the client's callback channel into the store
// under the given versioned filename.
func (p *Proc) download(ctx context.Context, clientPath, saveAs string) error {
	r, err := p.ch.FetchFile(ctx, clientPath)
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := p.store.SaveFile(saveAs, r)
	if err != nil {
		return err
	}
	p.logger.Debug(ctx, "file downloaded from client", "filename", saveAs, "bytes", n)
	return nil
}

// copyStoredFile duplicates the previous version's stored file under the new
// versioned filename, so a metadata-only revision still satisfies the
// name/version invariant. A previous version without a stored file is fine.
func (p *Proc) copyStoredFile(from, to string) error {
	f, err := p.store.OpenFile(from)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	_, err = p.store.SaveFile(to, f)
	return err
}

func (p *Proc) notifyCheckedIn(ctx context.Context, versioned string, status manifest.Status) error {
	if err := p.PublishList(ctx); err != nil {
		return err
	}
	return p.ch.Post(ctx, protocol.StatusMessage(
		fmt.Sprintf("package %s checked in as %s", versioned, status)))
}
