package scheduler

// Package scheduler drives the background jobs of the scanner backend:
// - The scan cycle, which assembles and processes one wave batch
// - Pending-refresh draining after a data source reconnect
// - Daily universe reloads from the index list service
// - Periodic quote archive snapshots
//
// The main scheduler is implemented in jobs.go
