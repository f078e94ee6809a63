// Package control holds asyncweb's runtime-tunable configuration
// (spec.md §6), a metrics registry, and a debug probe reflector.
//
// Provides concurrent-safe state handling primitives including:
//   - Immutable snapshot config reads and atomic updates
//   - Hot-reload listener dispatch via ConfigStore.OnReload
//   - Metrics telemetry contracts
//   - State export, debug hooks, and probe registration
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
