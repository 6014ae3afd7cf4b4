/*
Package ports defines the driven ports (interfaces) of the Lattice engine.

These interfaces decouple the core from external implementations, allowing the
engine to work with various flow storage backends and trigger sources.

# Key Interfaces

  - FlowStore: persists flow documents (memory, file, Redis, Postgres).
  - FlowLoader: read-only flow source (e.g., a Loam document repository).
  - Watchable: change notifications for hot re-activation.
  - DistributedLocker: serializes runs of one flow across instances.
  - EventSource: external trigger sources (webhooks, socket.io event bus).
*/
package ports
