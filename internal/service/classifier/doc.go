// Package classifier selects the source files that belong to a category.
package classifier
