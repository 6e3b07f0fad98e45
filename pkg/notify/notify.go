package notify

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/evansenter/agent-event-bus/pkg/log"
	"github.com/rs/zerolog"
)

// IconEnv names the environment variable holding an absolute path to a PNG
// used as the notification icon on macOS (terminal-notifier only).
const IconEnv = "EVENT_BUS_ICON"

// Send displays a desktop notification. On macOS terminal-notifier is
// preferred (it supports custom icons), with an osascript fallback; on Linux
// notify-send is used. Returns true if the notification was handed off.
func Send(title, message string, sound bool) bool {
	return send(runtime.GOOS, title, message, sound)
}

func send(goos, title, message string, sound bool) bool {
	logger := log.WithComponent("notify")

	switch goos {
	case "darwin":
		if _, err := exec.LookPath("terminal-notifier"); err == nil {
			args := []string{
				"-title", title,
				"-message", message,
				"-group", "event-bus",
				"-sender", "com.apple.Terminal",
			}
			if sound {
				args = append(args, "-sound", "default")
			}
			if icon := os.Getenv(IconEnv); icon != "" {
				if _, err := os.Stat(icon); err == nil {
					args = append(args, "-appIcon", icon)
				}
			}
			return run(logger, "terminal-notifier", args...)
		}

		script := fmt.Sprintf("display notification %q with title %q", message, title)
		if sound {
			script += ` sound name "default"`
		}
		return run(logger, "osascript", "-e", script)

	case "linux":
		if _, err := exec.LookPath("notify-send"); err != nil {
			logger.Warn().Msg("notify-send not found")
			return false
		}
		return run(logger, "notify-send", title, message)

	default:
		logger.Warn().Str("os", goos).Msg("Notifications not supported")
		return false
	}
}

func run(logger zerolog.Logger, name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error().Err(err).
			Str("command", name).
			Str("output", string(out)).
			Msg("Notification command failed")
		return false
	}
	return true
}
