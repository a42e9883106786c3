package notify

import (
	"context"
	"os/exec"
	"strconv"
	"time"
)

const AppName = "Mia Bhai"

// Desktop shows a transient notification through notify-send, which sway
// (mako), GNOME and KDE all understand. Missing binaries are reported, not
// fatal.
type Desktop struct {
	Bin     string
	Timeout time.Duration
}

func NewDesktop() *Desktop {
	return &Desktop{Bin: "notify-send", Timeout: 3 * time.Second}
}

func (d *Desktop) Notify(ctx context.Context, body string) error {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	return exec.CommandContext(ctx, d.Bin, args(body, d.Timeout)...).Run()
}

func args(body string, expire time.Duration) []string {
	return []string{
		"--app-name", AppName,
		"--expire-time", strconv.Itoa(int(expire / time.Millisecond)),
		AppName,
		body,
	}
}
