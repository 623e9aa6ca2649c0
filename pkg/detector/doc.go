// Package detector identifies client devices from user agents and request
// headers against a device database, and replaces that database at runtime
// without interrupting lookups.
//
// An Engine loads the database at a root path into an immutable snapshot.
// Every lookup pins the current snapshot and returns a Device that keeps it
// alive until the Device is closed:
//
//	engine, err := detector.New(ctx, "/var/lib/devicekit/devices.yaml",
//	    detector.WithCacheSize(10000),
//	    detector.WithSource(src),
//	    detector.WithUpdateInterval(detector.Daily),
//	)
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	dev, err := engine.LookupHeaders(detector.HeadersFromHTTP(r.Header))
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	if v, _ := dev.VirtualCapability("is_mobile"); v == "true" {
//	    // ...
//	}
//
// The Updater fetches a newer file from a source.Source, validates it by
// loading it, moves it over the root path and swaps it in. Devices resolved
// before the swap keep answering from the old snapshot, which is released
// when the last of them is closed. A failed update leaves both the current
// snapshot and the root file untouched.
//
//	if err := engine.Updater().Start(0); err != nil {
//	    return err
//	}
//
// NewFromConfig builds an engine, its update source and its updater from a
// config.Config.
package detector
