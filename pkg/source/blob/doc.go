// Package blob fetches content-addressed pool metadata.
//
// Blobs are addressed by their blake2b-256 digest. Every Store verifies the
// digest of what it reads, so a corrupted or substituted object surfaces as
// a fetch error instead of wrong metadata on screen. Stores exist for S3 and
// for a local directory.
package blob
