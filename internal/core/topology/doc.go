// Package topology contains the pure domain model for the deployed service
// stack. This is part of the Functional Core - all functions are pure with
// no I/O.
//
// Given an ordered set of service declarations, Build derives the global
// network list and validates the structural invariants (no duplicate
// services, no unknown networks, no host-port conflicts, mount access modes
// compatible with the service kind) before anything is rendered to disk.
// Construction is all-or-nothing: an invalid declaration set never produces
// a partial topology.
package topology
