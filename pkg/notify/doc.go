// Package notify sends desktop notifications through the platform's native
// tooling: terminal-notifier or osascript on macOS, notify-send on Linux.
package notify
