// Package index is the persistent handle index: for every reminder it keeps
// the list of (composite key, runtime handle) pairs currently registered
// with the trigger runtime, plus a small metadata area for typed settings.
//
// Two backends exist, selected once at startup:
//   - "file": snapshot + append-only journal, no external services
//   - "sqlite": single-file database, WAL mode
package index
