// Package heapdump loads Java HPROF heap dumps and exposes them to the
// reachability scanner in package reach.
//
// # Package Organization
//
//   - types.go: record tags, basic types and the object model
//   - reader.go: big-endian binary reader with offset tracking
//   - loader.go: record parser that builds a Snapshot
//   - snapshot.go: indexed, read-only view over the parsed dump
//   - introspector.go: reach.Introspector over a Snapshot
//   - predicate.go: class-based predicates
//
// Only the structure needed for reachability is retained: primitive array
// contents and non-reference constant pool entries are skipped while loading.
package heapdump
