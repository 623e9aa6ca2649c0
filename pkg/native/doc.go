// Package native provides the ownership primitive used to hold opaque
// resources handed out by a device-detection backend.
//
// A Handle wraps a single value together with the function that frees it and
// guarantees that function runs exactly once. Owners release through defer so
// every exit path (normal return, early error, panic) frees the resource:
//
//	h := native.New(db, func(db backend.Database) error { return db.Close() })
//	defer h.Release()
//
//	db, err := h.Get()
//	if errors.Is(err, native.ErrReleased) {
//	    // handle was already freed
//	}
//
// Handle does not count references. Shared ownership is layered on top of it
// by the detector package, which keeps a snapshot's handle alive until the last
// lease is returned.
package native
