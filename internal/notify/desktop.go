package notify

import (
	"context"

	"github.com/gen2brain/beeep"
)

// DesktopSink raises a desktop notification via the platform notifier
// (D-Bus/notify-send on Linux, toast on Windows, osascript on macOS).
type DesktopSink struct{}

func NewDesktopSink(appName string) *DesktopSink {
	if appName != "" {
		beeep.AppName = appName
	}
	return &DesktopSink{}
}

func (*DesktopSink) Name() string { return "desktop" }

func (*DesktopSink) Send(_ context.Context, n Notification) error {
	return beeep.Notify(n.Summary, n.Body, "")
}
