// Package tracker follows long-running remote commands to a terminal
// outcome. A fixed-tick poll loop queries the remote status endpoint with a
// growing per-command delay, forces a timeout status on overdue commands and
// aggregates per-target results into workflow-level outcomes.
package tracker
