// Package common holds helpers shared by several services.
//
// It provides the run marker that keeps two exporters from writing into
// the same output root at once.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
