package feed

import (
	"context"
	"log/slog"
	"os"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// Permissions reports capability grants for the bridge-backed streams. A
// stream's permission is granted when its feed file is configured and
// readable; an unsupported platform reports permanently unavailable and
// access requests become no-ops.
type Permissions struct {
	notificationPath string
	smsPath          string
	supported        bool
}

// NewPermissions creates a permission checker over the bridge feed paths.
func NewPermissions(notificationPath, smsPath string, platformSupported bool) *Permissions {
	return &Permissions{
		notificationPath: notificationPath,
		smsPath:          smsPath,
		supported:        platformSupported,
	}
}

// NotificationAccess reports the notification capability state.
func (p *Permissions) NotificationAccess(_ context.Context) model.PermissionState {
	if !p.supported {
		return model.PermissionUnavailable
	}
	return pathState(p.notificationPath)
}

// SmsAccess reports the SMS capability state.
func (p *Permissions) SmsAccess(_ context.Context) model.PermissionState {
	if !p.supported {
		return model.PermissionUnavailable
	}
	return pathState(p.smsPath)
}

// RequestNotificationAccess explains how to connect the bridge; there is no
// OS dialog to open from here.
func (p *Permissions) RequestNotificationAccess(ctx context.Context) (model.PermissionState, error) {
	if !p.supported {
		return model.PermissionUnavailable, nil
	}
	state := p.NotificationAccess(ctx)
	if state != model.PermissionGranted {
		slog.Info("Grant notification access by pointing the bridge at the feed path",
			"path", p.notificationPath)
	}
	return state, nil
}

// RequestSmsAccess explains how to connect the SMS bridge.
func (p *Permissions) RequestSmsAccess(ctx context.Context) (model.PermissionState, error) {
	if !p.supported {
		return model.PermissionUnavailable, nil
	}
	state := p.SmsAccess(ctx)
	if state != model.PermissionGranted {
		slog.Info("Grant SMS access by pointing the bridge at the feed path",
			"path", p.smsPath)
	}
	return state, nil
}

func pathState(path string) model.PermissionState {
	if path == "" {
		return model.PermissionUnknown
	}
	f, err := os.Open(path)
	if err != nil {
		return model.PermissionDenied
	}
	_ = f.Close()
	return model.PermissionGranted
}
