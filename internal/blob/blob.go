// Package blob is the facade over the attachment storage backends.
package blob

import (
	"context"
	"fmt"
	"os"

	"facilitycore/internal/blob/core"
	fsblob "facilitycore/internal/infra/blob/fs"
	memblob "facilitycore/internal/infra/blob/memory"
	s3blob "facilitycore/internal/infra/blob/s3"
)

// Aliases re-exported so callers depend on one package.
type (
	Driver           = core.Driver
	Store            = core.Store
	Info             = core.Info
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
)

// Driver identifiers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrUnsupported mirrors core.ErrUnsupported.
var ErrUnsupported = core.ErrUnsupported

// NewFilesystem returns a filesystem-backed store rooted at root.
func NewFilesystem(root string) (Store, error) { return fsblob.New(root) }

// NewMemory returns an in-memory store for tests.
func NewMemory() Store { return memblob.New() }

// Open selects a Store implementation using environment variables.
//
//	FACILITYCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	FACILITYCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./attachments)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("FACILITYCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("FACILITYCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return s3blob.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
