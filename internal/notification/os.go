package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// osChannel sends notifications via the OS-native notification system.
type osChannel struct {
	executor CommandExecutor
	platform string
}

func newOSChannel(opts ...Option) Channel {
	ch := &osChannel{platform: runtime.GOOS}

	for _, opt := range opts {
		opt(ch)
	}

	if ch.executor == nil {
		ch.executor = &realCommandExecutor{}
	}

	return ch
}

func (c *osChannel) Send(n Notification) error {
	switch c.platform {
	case "linux":
		return c.executor.Execute("notify-send", n.Title, n.Message)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(n.Message), escapeAppleScript(n.Title))
		return c.executor.Execute("osascript", "-e", script)
	case "windows":
		return c.sendWindows(n)
	default:
		return fmt.Errorf("unsupported platform: %s", c.platform)
	}
}

// escapeAppleScript escapes backslashes and double quotes so the message
// cannot break out of the AppleScript string.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// escapePowerShell escapes backticks, double quotes, and dollar signs so the
// message cannot execute as a subexpression.
func escapePowerShell(s string) string {
	s = strings.ReplaceAll(s, "`", "``")
	s = strings.ReplaceAll(s, `"`, "`\"")
	s = strings.ReplaceAll(s, "$", "`$")
	return s
}

func (c *osChannel) sendWindows(n Notification) error {
	script := fmt.Sprintf(`
Add-Type -AssemblyName System.Windows.Forms
$notification = New-Object System.Windows.Forms.NotifyIcon
$notification.Icon = [System.Drawing.SystemIcons]::Information
$notification.BalloonTipTitle = "%s"
$notification.BalloonTipText = "%s"
$notification.Visible = $true
$notification.ShowBalloonTip(5000)
`, escapePowerShell(n.Title), escapePowerShell(n.Message))
	return c.executor.Execute("powershell", "-Command", script)
}

func (c *osChannel) Close() error {
	return nil
}

type realCommandExecutor struct{}

func (e *realCommandExecutor) Execute(cmd string, args ...string) error {
	return exec.Command(cmd, args...).Run()
}
