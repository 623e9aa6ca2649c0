// Package backend defines the boundary between devicekit and a device-detection
// engine.
//
// The engine is an opaque collaborator: it loads a device database from a root
// data file, matches client signatures against it and answers capability
// queries. devicekit never looks inside; it reaches the engine only through
// Loader, Database and Result, and relies on the sentinel errors below to
// translate failures.
//
// Ownership follows the native library the interfaces were modelled on. A
// Database owns everything it loads. A Result may point into its Database and
// must be closed before the Database is. Keeping that order is the caller's job;
// the detector package does it with reference-counted snapshots.
//
// MatchType values mirror the engine's numbering, including the retired slot 4.
package backend
