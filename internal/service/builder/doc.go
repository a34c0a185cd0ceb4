// Package builder turns selected assets into platform bundle files.
//
// Serialising engine objects is owned by the engine's own asset pipeline;
// this package defines the Builder capability the exporter depends on and
// ships two adapters: ArchiveBuilder packs files into a deterministic
// tar+zstd bundle, CommandBuilder delegates to an external build tool.
//
// Composite assets are flattened into transient copies before building.
// A Stager hands out one Batch per build; the exporter defers
// Batch.Release, which deletes every transient copy of the batch whether
// the build succeeded or not.
package builder
