package cli

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// progressMode returns the configured progress mode: "auto", "tty", or "plain".
func progressMode() string {
	mode := viper.GetString("progress")
	switch mode {
	case "auto", "tty", "plain":
		return mode
	default:
		return "auto"
	}
}

// shouldShowProgress returns true if progress bars should be displayed.
func shouldShowProgress() bool {
	mode := progressMode()

	// Plain mode disables progress
	if mode == "plain" {
		return false
	}

	// TTY mode forces progress regardless of terminal detection
	if mode == "tty" {
		return true
	}

	// Auto mode: show progress only if connected to a TTY
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// newByteBar creates a progress bar for byte-based operations. A negative
// total renders a spinner. Returns nil when progress is disabled.
func newByteBar(total int64, description string) *progressbar.ProgressBar {
	if !shouldShowProgress() {
		return nil
	}
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionUseANSICodes(true),
	)
}

// finishBar completes a bar, tolerating a nil one.
func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		//nolint:errcheck // progress bar errors are not critical
		bar.Finish()
	}
}

// addToBar advances a bar, tolerating a nil one.
func addToBar(bar *progressbar.ProgressBar, n int64) {
	if bar != nil {
		//nolint:errcheck // progress bar errors are not critical
		bar.Add64(n)
	}
}
