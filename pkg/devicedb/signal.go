package devicedb

import (
	"regexp"
	"strings"
)

// Form factor values reported by the form_factor virtual capability.
const (
	formFactorDesktop      = "Desktop"
	formFactorTablet       = "Tablet"
	formFactorSmartphone   = "Smartphone"
	formFactorFeaturePhone = "Feature Phone"
	formFactorSmartTV      = "Smart-TV"
	formFactorRobot        = "Robot"
	formFactorOther        = "Other Non-Mobile"
)

// normalize lower-cases ua and collapses runs of white space.
func normalize(ua string) string {
	return strings.Join(strings.Fields(strings.ToLower(ua)), " ")
}

type keywordSet map[string]struct{}

func newKeywordSet(keywords ...string) keywordSet {
	set := make(keywordSet, len(keywords))
	for _, w := range keywords {
		set[w] = struct{}{}
	}
	return set
}

func (k keywordSet) contains(s string) bool {
	for w := range k {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

var (
	robotKeywords       = newKeywordSet("bot", "spider", "crawler", "archiver", "slurp", "lighthouse", "facebookexternalhit", "monitor", "fetcher", "scraper", "curl/", "wget/")
	tvKeywords          = newKeywordSet("smart-tv", "smarttv", "googletv", "android tv", "appletv", "hbbtv", "webos", "tizen", "crkey", "roku")
	tabletKeywords      = newKeywordSet("ipad", "tablet", "kindle", "silk", "sm-t", "gt-p", "mediapad")
	featurePhoneKeyword = newKeywordSet("midp", "cldc", "j2me", "kaios", "series40", "nokia")
	mobileKeywords      = newKeywordSet("mobile", "iphone", "ipod", "windows phone", "iemobile", "blackberry", "opera mini")
	webviewKeywords     = newKeywordSet("; wv)", "fban/", "fbav/", "instagram", "line/", "micromessenger")
)

type osRule struct {
	name     string
	keywords keywordSet
	excludes keywordSet
	version  *regexp.Regexp
}

// Order matters: Windows Phone before Windows, iOS before macOS.
var osRules = []osRule{
	{name: "Windows Phone OS", keywords: newKeywordSet("windows phone"), version: regexp.MustCompile(`windows phone(?: os)? ([\d.]+)`)},
	{name: "iOS", keywords: newKeywordSet("iphone", "ipad", "ipod"), version: regexp.MustCompile(`(?:iphone )?os ([\d_]+) like mac os x`)},
	{name: "Android", keywords: newKeywordSet("android"), version: regexp.MustCompile(`android ([\d.]+)`)},
	{name: "Windows", keywords: newKeywordSet("windows nt", "windows"), version: regexp.MustCompile(`windows nt ([\d.]+)`)},
	{name: "Mac OS X", keywords: newKeywordSet("macintosh", "mac os x"), version: regexp.MustCompile(`mac os x ([\d_.]+)`)},
	{name: "Chrome OS", keywords: newKeywordSet("cros", "chromeos")},
	{name: "Tizen", keywords: newKeywordSet("tizen"), version: regexp.MustCompile(`tizen ([\d.]+)`)},
	{name: "Linux", keywords: newKeywordSet("linux", "x11", "ubuntu", "fedora", "debian"), excludes: newKeywordSet("android")},
}

type browserRule struct {
	name     string
	keywords keywordSet
	excludes keywordSet
	version  *regexp.Regexp
}

var browserRules = []browserRule{
	{name: "Edge", keywords: newKeywordSet("edg/", "edge/", "edga/", "edgios/"), version: regexp.MustCompile(`edg(?:e|a|ios)?/([\d.]+)`)},
	{name: "Samsung Browser", keywords: newKeywordSet("samsungbrowser"), version: regexp.MustCompile(`samsungbrowser/([\d.]+)`)},
	{name: "UC Browser", keywords: newKeywordSet("ucbrowser"), version: regexp.MustCompile(`ucbrowser/([\d.]+)`)},
	{name: "Opera Mini", keywords: newKeywordSet("opera mini"), version: regexp.MustCompile(`opera mini/([\d.]+)`)},
	{name: "Opera", keywords: newKeywordSet("opr/", "opera"), version: regexp.MustCompile(`(?:opr|version)/([\d.]+)`)},
	{name: "Yandex Browser", keywords: newKeywordSet("yabrowser"), version: regexp.MustCompile(`yabrowser/([\d.]+)`)},
	{name: "Firefox", keywords: newKeywordSet("firefox/", "fxios/"), version: regexp.MustCompile(`(?:firefox|fxios)/([\d.]+)`)},
	{name: "Chrome Mobile", keywords: newKeywordSet("crios/"), version: regexp.MustCompile(`crios/([\d.]+)`)},
	{name: "Chrome", keywords: newKeywordSet("chrome/"), version: regexp.MustCompile(`chrome/([\d.]+)`)},
	{name: "Mobile Safari", keywords: newKeywordSet("mobile/", "mobile safari"), excludes: newKeywordSet("android", "chrome"), version: regexp.MustCompile(`version/([\d.]+)`)},
	{name: "Safari", keywords: newKeywordSet("safari/"), excludes: newKeywordSet("android", "chrome"), version: regexp.MustCompile(`version/([\d.]+)`)},
	{name: "Android Webkit", keywords: newKeywordSet("android"), version: regexp.MustCompile(`version/([\d.]+)`)},
	{name: "Internet Explorer", keywords: newKeywordSet("msie", "trident/"), version: regexp.MustCompile(`(?:msie |rv:)([\d.]+)`)},
}

// signal is what can be read directly off a user agent string, without the
// device tree.
type signal struct {
	os             string
	osVersion      string
	browser        string
	browserVersion string
	formFactor     string
	robot          bool
	webview        bool
}

// classify inspects a normalized user agent.
func classify(ua string) signal {
	var s signal
	if ua == "" {
		s.formFactor = formFactorOther
		return s
	}

	for _, r := range osRules {
		if r.keywords.contains(ua) && (r.excludes == nil || !r.excludes.contains(ua)) {
			s.os = r.name
			s.osVersion = extractVersion(ua, r.version)
			break
		}
	}
	for _, r := range browserRules {
		if r.keywords.contains(ua) && (r.excludes == nil || !r.excludes.contains(ua)) {
			s.browser = r.name
			s.browserVersion = extractVersion(ua, r.version)
			break
		}
	}

	s.robot = robotKeywords.contains(ua)
	s.webview = webviewKeywords.contains(ua)
	s.formFactor = formFactor(ua, s)
	return s
}

// formFactor mirrors the ordering of the UA device-type heuristics: Apple
// identifiers are unambiguous, robots next, then Android phone vs tablet.
func formFactor(ua string, s signal) string {
	switch {
	case strings.Contains(ua, "ipad"):
		return formFactorTablet
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipod"):
		return formFactorSmartphone
	case s.robot:
		return formFactorRobot
	case tvKeywords.contains(ua):
		return formFactorSmartTV
	case s.os == "Android":
		// Android tablets omit the "mobile" token.
		if strings.Contains(ua, "mobile") {
			return formFactorSmartphone
		}
		return formFactorTablet
	case tabletKeywords.contains(ua):
		return formFactorTablet
	case featurePhoneKeyword.contains(ua):
		return formFactorFeaturePhone
	case mobileKeywords.contains(ua):
		return formFactorSmartphone
	case s.os == "Windows" || s.os == "Mac OS X" || s.os == "Linux" || s.os == "Chrome OS":
		return formFactorDesktop
	}
	return formFactorOther
}

func extractVersion(ua string, re *regexp.Regexp) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(ua)
	if len(m) < 2 {
		return ""
	}
	v := strings.ReplaceAll(m[1], "_", ".")
	if len(v) > 20 {
		v = v[:20]
	}
	return strings.TrimRight(v, ".")
}
