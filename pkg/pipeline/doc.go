// Package pipeline defines the pull-based producer/filter chain every wsds
// stage plugs into.
//
// A Pipeline is a Source followed by an ordered list of Stages. Running it
// composes the stages left to right into a single lazy Iterator: pulling one
// Sample from the end of the chain pulls exactly as much work as needed from
// upstream. Nothing is buffered by the chain itself.
//
// # Capabilities
//
// Stages may carry state. Two optional capabilities are discovered through
// type assertions rather than configuration:
//
//   - [EpochSetter]: told the current epoch before each pass
//   - [io.Closer]: closed in reverse order when the owner shuts down
//
// # Errors
//
// Iterators return io.EOF at exhaustion. Stages that can fail per sample
// route the failure through a [Handler], which decides between aborting the
// pass and skipping the sample.
package pipeline
