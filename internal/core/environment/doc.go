// Package environment contains the Environment aggregate: the typed
// representation of one deployment environment's lifecycle phase plus its
// accumulated context. This is part of the Functional Core - transitions are
// pure; loading and committing state is the caller's concern.
package environment
