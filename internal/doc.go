// Package internal contains the core implementation packages for repokit.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the repository server.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - client: callback channels to clients over WebSocket, including
//     file transfer in both directions
//   - config: configuration management with validation
//   - errors: structured error types with classification and user-facing
//     status text
//   - logging: structured logging backed by log/slog
//   - manifest: manifest documents and the manifest store
//   - pkgver: versioned package and file naming
//   - protocol: wire messages and command payloads
//   - server: the request processor, the single-consumer dispatcher, the
//     inbound HTTP endpoint and the store directory watcher
//   - version: build identification
//
// # Inter-Package Communication
//
// The server package coordinates everything: the HTTP endpoint decodes
// protocol messages and enqueues them, the dispatcher consumes the queue
// one message at a time, and the processor executes each request against
// the manifest store while talking back to the client over its callback
// channel. Serialization of store access comes from the single consumer
// goroutine, not from locking.
package internal
