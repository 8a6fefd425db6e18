/*
Package image caches the shared read-only base disk image.

The cache is idempotent by path existence: a present image triggers zero
network activity, and all per-instance pipelines of a run gate on one Ensure
call. Downloads go to a temporary file and are atomically renamed into place,
so the canonical path never holds a partial image. An optional SHA-256 digest
verifies the download; without one, the source URL is trusted.
*/
package image
