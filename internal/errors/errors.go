// internal/errors/errors.go
package errors

import "errors"

// ErrIntegrationNotFound is returned when no integration exists for the given id.
var ErrIntegrationNotFound = errors.New("integration not found")

// ErrRepoNotFound is returned when a sync stage references a repository
// that has not been stored yet.
var ErrRepoNotFound = errors.New("repository not found")

// ErrSyncInProgress is returned when a sync is triggered for an integration
// whose single-flight lease is already held.
var ErrSyncInProgress = errors.New("a sync is already in progress for this integration")
