// Package domain holds the core types of the offramp engine: the declarative
// step graph (Step, Question, Button, ConditionalBranch), the per-session
// FlowState, the persisted CancellationRecord, and the error taxonomy shared
// by the runtime and the storage adapters.
//
// Types here carry no behavior beyond lookups and copies. The resolution and
// validation logic lives in internal/runtime; persistence contracts live in
// pkg/ports.
package domain
