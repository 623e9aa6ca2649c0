// Package devicedbtest provides a small but complete device database for
// tests of the packages built on top of devicedb.
package devicedbtest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// User agents with a known outcome against the fixture database.
const (
	IPhoneUA     = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
	IPhone12UA   = "Mozilla/5.0 (iPhone; CPU iPhone OS 12_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/12.1.2 Mobile/15E148 Safari/604.1"
	IPadUA       = "Mozilla/5.0 (iPad; CPU OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
	RedmiUA      = "Mozilla/5.0 (Linux; Android 7.1.2; Redmi 4A) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.99 Mobile Safari/537.36"
	GalaxyS21UA  = "Mozilla/5.0 (Linux; Android 12; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/17.0 Chrome/96.0.4664.104 Mobile Safari/537.36"
	UnknownPhone = "Mozilla/5.0 (Linux; Android 11; Nebula X1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.91 Mobile Safari/537.36"
	DesktopUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	GooglebotUA  = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	OperaMiniUA  = "Opera/9.80 (J2ME/MIDP; Opera Mini/9.80 (S60; SymbOS; Opera Mobi/23.348; U; en) Presto/2.5.25 Version/10.54"
)

// Device ids present in the fixture database.
const (
	IPhoneID     = "apple_iphone_ver1"
	IPhone14ID   = "apple_iphone_ver14"
	IPadID       = "apple_ipad_ver1"
	RedmiID      = "xiaomi_redmi_4a_ver1"
	GalaxyS21ID  = "samsung_sm_g991b_ver1"
	GalaxyTabID  = "samsung_sm_t870_ver1"
	SmartphoneID = "generic_smartphone"
	PatchedID    = "nokia_8110_ver1"
)

// YAML renders the fixture database with the given data version.
func YAML(version string) string {
	return fmt.Sprintf(database, version)
}

// WriteFile writes the fixture database into dir and returns its path.
func WriteFile(t testing.TB, dir, version string) string {
	t.Helper()
	path := filepath.Join(dir, "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(YAML(version)), 0o644))
	return path
}

// WriteZip writes the fixture database as a zip archive into dir and
// returns its path.
func WriteZip(t testing.TB, dir, version string) string {
	t.Helper()
	path := filepath.Join(dir, "devices.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	zw := zip.NewWriter(f)
	w, err := zw.Create("devices.yaml")
	require.NoError(t, err)
	_, err = w.Write([]byte(YAML(version)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

// WritePatch writes a patch that renames the iPhone and adds PatchedID.
func WritePatch(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "patch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(patch), 0o644))
	return path
}

// WriteRaw writes arbitrary content to dir/name, for corrupt-file cases.
func WriteRaw(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const database = `format: 1
version: %q
description: devicekit test fixture
important_headers:
  - User-Agent
  - Device-Stock-UA
  - X-UCBrowser-Device-UA
  - X-OperaMini-Phone-UA
  - X-Requested-With
  - Sec-CH-UA-Mobile
  - Sec-CH-UA-Model
  - Sec-CH-UA-Platform
  - Sec-CH-UA-Platform-Version
groups:
  product_info: [brand_name, model_name, marketing_name, release_date]
  display: [resolution_width, resolution_height, max_image_width]
  os: [device_os, device_os_version]
  ajax: [ajax_support_javascript]
devices:
  - id: generic
    capabilities:
      brand_name: ""
      model_name: ""
      marketing_name: ""
      release_date: ""
      device_os: ""
      device_os_version: ""
      is_wireless_device: "false"
      is_tablet: "false"
      is_smarttv: "false"
      pointing_method: ""
      resolution_width: "90"
      resolution_height: "90"
      max_image_width: "90"
      mobile_browser: ""
      mobile_browser_version: ""
      ajax_support_javascript: "false"
  - id: generic_mobile
    fall_back: generic
    capabilities:
      is_wireless_device: "true"
      resolution_width: "240"
      resolution_height: "320"
  - id: generic_smartphone
    fall_back: generic_mobile
    capabilities:
      pointing_method: touchscreen
      resolution_width: "320"
      resolution_height: "480"
      max_image_width: "320"
      ajax_support_javascript: "true"
  - id: generic_tablet
    fall_back: generic_smartphone
    capabilities:
      is_tablet: "true"
      resolution_width: "768"
      resolution_height: "1024"
      max_image_width: "768"
  - id: generic_web_browser
    fall_back: generic
    capabilities:
      pointing_method: mouse
      resolution_width: "1280"
      resolution_height: "800"
      max_image_width: "1280"
      ajax_support_javascript: "true"
  - id: generic_web_crawler
    fall_back: generic
  - id: generic_smarttv
    fall_back: generic
    capabilities:
      is_smarttv: "true"
      resolution_width: "1920"
      resolution_height: "1080"
  - id: apple_iphone_ver1
    fall_back: generic_smartphone
    actual_device_root: true
    match: [iphone]
    capabilities:
      brand_name: apple
      model_name: iPhone
      device_os: iOS
      device_os_version: "1.0"
      mobile_browser: Safari
      resolution_width: "375"
      resolution_height: "667"
  - id: apple_iphone_ver14
    fall_back: apple_iphone_ver1
    user_agent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"
    match: [iphone, "iphone os 14"]
    capabilities:
      device_os_version: "14.0"
      mobile_browser_version: "14.0"
  - id: apple_ipad_ver1
    fall_back: generic_tablet
    actual_device_root: true
    match: [ipad]
    capabilities:
      brand_name: apple
      model_name: iPad
      device_os: iOS
      mobile_browser: Safari
  - id: xiaomi_redmi_4a_ver1
    fall_back: generic_smartphone
    actual_device_root: true
    match: [android, "redmi 4a"]
    capabilities:
      brand_name: xiaomi
      model_name: Redmi 4A
      device_os: Android
      device_os_version: "7.1"
      release_date: "2016_november"
      resolution_width: "720"
      resolution_height: "1280"
  - id: samsung_sm_g991b_ver1
    fall_back: generic_smartphone
    actual_device_root: true
    match: [android, sm-g991b]
    capabilities:
      brand_name: samsung
      model_name: SM-G991B
      marketing_name: Galaxy S21
      device_os: Android
      device_os_version: "12.0"
      resolution_width: "1080"
      resolution_height: "2400"
  - id: samsung_sm_t870_ver1
    fall_back: generic_tablet
    actual_device_root: true
    match: [android, sm-t870]
    capabilities:
      brand_name: samsung
      model_name: SM-T870
      marketing_name: Galaxy Tab S7
      device_os: Android
`

const patch = `devices:
  - id: apple_iphone_ver1
    capabilities:
      marketing_name: iPhone (patched)
  - id: nokia_8110_ver1
    fall_back: generic_mobile
    actual_device_root: true
    match: [nokia8110]
    capabilities:
      brand_name: nokia
      model_name: "8110"
      device_os: KaiOS
`
