// Package reach answers one question about a live object graph: is an object
// matching a predicate strongly reachable from a given root?
//
// # Model
//
// The Scanner walks the graph breadth-first. Objects are deduplicated by
// identity, never by equality, so cyclic and self-referential structures
// terminate and structurally equal objects are still visited separately.
// Every object in the frontier has already been marked visited.
//
// The root itself is never tested against the predicate; only objects reached
// through at least one owning edge are. A root that is itself an instance of
// the sought type is therefore not reported as reachable from itself.
//
// Scalars (booleans, numbers and strings) have no outgoing edges. A value
// whose static type is scalar, whether a field, an element or a map key, is
// never tested. A scalar stored in an interface is tested like any other
// value, so InstanceOf[string] matches only boxed strings.
//
// # Introspection
//
// The Scanner does not know how objects are laid out. An Introspector exposes
// the shape of each object (indexed container, composite with slots, or
// opaque), its identity key and the values of its slots. Two introspectors
// ship with this module:
//
//   - ValueIntrospector walks Go values with package reflect, reading
//     unexported fields through an unsafe access override. It follows
//     atomic.Pointer and sync.Map contents; channel buffers and closure
//     captures are not visible to it.
//   - heapdump.HeapIntrospector walks a parsed Java HPROF heap dump.
//
// # Reference strength
//
// A ReferenceClassifier, injected at construction, names the single slot
// that a non-owning reference wrapper uses to point at its referent. That slot
// is never followed. WeakPointerReferent covers weak.Pointer for Go values;
// JavaReferenceReferent covers java.lang.ref.Reference.referent in heap dumps.
//
// # Errors
//
// A slot the runtime refuses to expose (ErrAccessRefused) is skipped silently.
// This is an under-approximation: if the refused slot is the only path to a
// match the scan reports false. Any other read failure, or a panicking
// predicate, aborts the scan with a *ScanFailure.
//
// # Concurrency
//
// A scan runs to completion on the calling goroutine and keeps no state
// between calls. The graph must not be mutated while it is being scanned.
//
// # Usage
//
//	found, err := reach.IsReachable(reach.InstanceOf[Session](), cache)
//	if err != nil {
//	    return err
//	}
//	if found {
//	    // a *Session is still held by cache
//	}
package reach
