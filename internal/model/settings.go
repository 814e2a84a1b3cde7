package model

import "time"

// DetectionSettings is the single persisted configuration record for the
// detection engine. Created with defaults on first run and mutated only by
// explicit user toggles or by CheckPermissions refreshing the grant cache.
type DetectionSettings struct {
	UpdatedAt                     time.Time
	NotificationPermissionGranted bool
	SmsPermissionGranted          bool
	NotificationListenerEnabled   bool
	SmsReaderEnabled              bool
	AutoShowPrompt                bool
}

// DefaultDetectionSettings returns the first-run settings: both streams
// enabled by intent (they still require a permission grant to start) and
// prompts shown immediately.
func DefaultDetectionSettings() DetectionSettings {
	return DetectionSettings{
		NotificationListenerEnabled: true,
		SmsReaderEnabled:            true,
		AutoShowPrompt:              true,
	}
}
