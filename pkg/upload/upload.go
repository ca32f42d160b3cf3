package upload

import "context"

// Uploader publishes result files to remote storage.
type Uploader interface {
	// Preflight verifies that the remote storage is reachable and writable.
	// Writes a small test object to the bucket to fail fast on misconfiguration.
	Preflight(ctx context.Context) error

	// UploadResultFiles uploads each file under the configured prefix,
	// keyed by its base name. Existing objects are overwritten.
	UploadResultFiles(ctx context.Context, paths []string) error
}
