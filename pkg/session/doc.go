/*
Package session owns the live flow sessions. A Session holds the mutable
FlowState of one user walking the cancellation flow; the Manager creates,
indexes and closes sessions and guards concurrent access to them.

Opening a session pins the A/B cohort through the guarded read-before-write
path and restores any previously persisted progress for the same
(user, subscription) pair. Durable writes happen only at the terminal step.
*/
package session
