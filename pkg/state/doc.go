/*
Package state persists launched instance handles in a BoltDB database under
the workspace.

Handles are keyed by instance name and record the PID, host SSH port, and
artifact paths of the last launch. The store backs the exclusivity check
(refusing to provision over a live instance) and the status command; it is
not a cluster state store, just a small local ledger that survives process
restarts.
*/
package state
