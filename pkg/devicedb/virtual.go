package devicedb

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var virtualCapabilityNames = []string{
	"advertised_browser",
	"advertised_browser_version",
	"advertised_device_os",
	"advertised_device_os_version",
	"complete_device_name",
	"device_name",
	"form_factor",
	"is_android",
	"is_app_webview",
	"is_full_desktop",
	"is_ios",
	"is_largescreen",
	"is_mobile",
	"is_phone",
	"is_robot",
	"is_smartphone",
	"is_touchscreen",
	"is_windows_phone",
}

// VirtualCapabilityNames returns the virtual capabilities every database
// computes.
func VirtualCapabilityNames() []string {
	out := make([]string, len(virtualCapabilityNames))
	copy(out, virtualCapabilityNames)
	return out
}

// virtualCapabilities derives the computed capabilities of a match from the
// device's static capabilities, the user agent and any client hints.
func virtualCapabilities(caps map[string]string, ua string, headers map[string]string) map[string]string {
	sig := classify(normalize(ua))

	advOS, advOSVersion := sig.os, sig.osVersion
	if p := hint(headers, "Sec-CH-UA-Platform"); p != "" {
		advOS = p
		if pv := hint(headers, "Sec-CH-UA-Platform-Version"); pv != "" {
			advOSVersion = pv
		}
	}

	wireless := caps["is_wireless_device"] == "true"
	if hint(headers, "Sec-CH-UA-Mobile") == "?1" {
		wireless = true
	}
	tablet := caps["is_tablet"] == "true"
	touch := caps["pointing_method"] == "touchscreen"
	width := atoi(caps["resolution_width"])
	height := atoi(caps["resolution_height"])
	deviceOS := caps["device_os"]

	ff := deviceFormFactor(caps, sig, wireless, tablet, touch)
	smartphone := wireless && !tablet && touch && width >= 320
	phone := wireless && !tablet && (ff == formFactorSmartphone || ff == formFactorFeaturePhone)

	webview := sig.webview
	if xrw := lookupFold(headers, "X-Requested-With"); xrw != "" && !strings.EqualFold(xrw, "XMLHttpRequest") {
		webview = true
	}

	return map[string]string{
		"advertised_browser":           sig.browser,
		"advertised_browser_version":   sig.browserVersion,
		"advertised_device_os":         advOS,
		"advertised_device_os_version": advOSVersion,
		"complete_device_name":         completeDeviceName(caps),
		"device_name":                  deviceName(caps),
		"form_factor":                  ff,
		"is_android":                   strconv.FormatBool(deviceOS == "Android" || advOS == "Android"),
		"is_app_webview":               strconv.FormatBool(webview),
		"is_full_desktop":              strconv.FormatBool(ff == formFactorDesktop),
		"is_ios":                       strconv.FormatBool(deviceOS == "iOS" || advOS == "iOS"),
		"is_largescreen":               strconv.FormatBool(width >= 480 && height >= 480),
		"is_mobile":                    strconv.FormatBool(wireless),
		"is_phone":                     strconv.FormatBool(phone),
		"is_robot":                     strconv.FormatBool(sig.robot),
		"is_smartphone":                strconv.FormatBool(smartphone),
		"is_touchscreen":               strconv.FormatBool(touch),
		"is_windows_phone":             strconv.FormatBool(deviceOS == "Windows Phone OS" || advOS == "Windows Phone OS"),
	}
}

// deviceFormFactor trusts the device tree over the user agent; the UA only
// decides between desktop, robot and other for non-wireless devices.
func deviceFormFactor(caps map[string]string, sig signal, wireless, tablet, touch bool) string {
	switch {
	case sig.robot:
		return formFactorRobot
	case caps["is_smarttv"] == "true":
		return formFactorSmartTV
	case tablet:
		return formFactorTablet
	case wireless && touch:
		return formFactorSmartphone
	case wireless:
		return formFactorFeaturePhone
	case sig.formFactor == formFactorDesktop, sig.formFactor == formFactorSmartTV:
		return sig.formFactor
	}
	return formFactorOther
}

func deviceName(caps map[string]string) string {
	name := caps["marketing_name"]
	if name == "" {
		name = caps["model_name"]
	}
	return joinNonEmpty(brand(caps), name)
}

func completeDeviceName(caps map[string]string) string {
	s := joinNonEmpty(brand(caps), caps["model_name"])
	if m := caps["marketing_name"]; m != "" && m != caps["model_name"] {
		s = joinNonEmpty(s, "("+m+")")
	}
	return s
}

func brand(caps map[string]string) string {
	// Casers carry state and are not safe for concurrent use.
	return cases.Title(language.Und, cases.NoLower).String(caps["brand_name"])
}

func joinNonEmpty(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

// hint returns a structured header value without its surrounding quotes.
func hint(headers map[string]string, name string) string {
	return strings.Trim(strings.TrimSpace(lookupFold(headers, name)), `"`)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
