// Package bundle contains core domain types for content export.
//
// It defines categories and platforms (static configuration), candidate
// assets discovered on disk, manifest entries and per-category export
// results, together with the error kinds an export run distinguishes.
package bundle
