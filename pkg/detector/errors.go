package detector

import "errors"

var (
	// Loading
	ErrLoadFailed      = errors.New("detector: device database could not be loaded")
	ErrVersionMismatch = errors.New("detector: device database incompatible with engine")

	// Lookups
	ErrNoUsableSignal  = errors.New("detector: no important header present")
	ErrUnknownDeviceID = errors.New("detector: unknown device id")
	ErrLookupFailed    = errors.New("detector: lookup failed")
	ErrEngineClosed    = errors.New("detector: engine closed")

	// Updates
	ErrFetchFailed      = errors.New("detector: update fetch failed")
	ErrValidationFailed = errors.New("detector: downloaded database failed validation")
	ErrPublishFailed    = errors.New("detector: downloaded database could not be published")
	ErrAlreadyCurrent   = errors.New("detector: database already current")
	ErrNoSource         = errors.New("detector: no update source configured")
	ErrAlreadyRunning   = errors.New("detector: updater already running")
	ErrNotRunning       = errors.New("detector: updater not running")
	ErrInvalidInterval  = errors.New("detector: update interval must be positive")
)
