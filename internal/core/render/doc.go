// Package render turns a validated topology and environment context into
// deployment artifacts: the docker-compose file released to the target, the
// Ansible inventory used by the configuration engine, and the OpenTofu
// descriptors used by the provisioning engine. Rendering is deterministic -
// identical inputs produce byte-identical output - so tests can verify
// artifacts with snapshot comparisons.
package render
