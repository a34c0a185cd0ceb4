// Package publisher copies a platform's finished bundles, manifest and
// file listing to an S3-compatible bucket addressed as
// s3+http(s)://host/bucket/prefix.
package publisher
