// Package devicedb is an in-process device database that implements the
// backend interfaces without any native library.
//
// A database is a YAML document, optionally packed into a zip archive with a
// single .yaml entry:
//
//	format: 1
//	version: "2024-05-01"
//	important_headers: [User-Agent, Device-Stock-UA, Sec-CH-UA-Platform]
//	groups:
//	  product_info: [brand_name, model_name]
//	devices:
//	  - id: generic
//	    capabilities: {brand_name: "", is_wireless_device: "false", ...}
//	  - id: apple_iphone_ver1
//	    fall_back: generic_smartphone
//	    actual_device_root: true
//	    match: ["iphone"]
//	    capabilities: {brand_name: Apple, device_os: iOS}
//
// The root device "generic" declares every capability and its default.
// Every other device names a fall_back parent and inherits whatever it does
// not override. A device with match tokens is selected when all of its
// tokens occur in the normalized user agent; the device with the longest
// token set wins.
//
// Unmatched user agents recover to a generic device picked by form factor
// (generic_smartphone, generic_tablet, generic_web_browser and so on) and
// finally to the root.
//
// Usage:
//
//	db, err := devicedb.Loader{}.Load(ctx, "devices.yaml", backend.LoadOptions{})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	res, err := db.LookupUserAgent(r.UserAgent())
//	if err != nil {
//		return err
//	}
//	defer res.Close()
//	brand, _ := res.Capability("brand_name")
package devicedb
