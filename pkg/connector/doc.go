// Package connector exposes a managed resource as named, typed attributes and
// notification lists behind a concurrency-safe facade.
//
// # Architecture Overview
//
// A concrete connector implements Hooks, the back-end seam. Connector owns two
// registries and decides when each hook runs and under which lock:
//
//   - AttributeRegistry maps client-chosen attribute ids to AttributeMetadata.
//     Reads share the registry's read lock; connect, write and disconnect take
//     the write lock. Batch reads and writes split one timeout budget across
//     their items.
//
//   - NotificationRegistry maps list ids to NotificationMetadata. Every list
//     keeps its own listener table, so subscribing to one list never blocks
//     delivery on another. Listener ids come from a Sequence: the shared
//     GlobalSequence, or one per list from NewSequence.
//
// The two maps live in separate cell.Cell values and are never locked
// together. Hooks run while the registry lock is held, so a hook must not
// call back into the same registry.
//
// Optional back-end capabilities are discovered by interface: ActionInvoker
// for InvokeAction and ResourceCloser for releasing resources on Close.
//
// # Lifecycle
//
// Connectors are usually built through the registry subpackage from a
// config.BaseConfig. Close is one-shot: it clears both registries and, once it
// returns, every later call fails with an illegal-state error matching
// errors.ErrClosed. A closed instance must be discarded.
//
// # Timeouts
//
// Timeouts are cooperative. A hook receives the time left and is trusted to
// honor it; the facade never cancels a running hook. In a batch, item k is
// handed the budget minus the time the earlier items spent, which may be zero
// or negative when the batch has overrun.
//
// # Observability
//
// Every facade operation runs in an OpenTelemetry span named
// "<connector>.<operation>" and is counted in the Prometheus collectors of
// the metrics package. Structured logging goes through zap.
package connector
