// Package hasher computes content digests of finished bundles.
//
// Digests are uppercase hex without separators; they only need to be
// deterministic and collision-resistant enough for change detection.
package hasher
