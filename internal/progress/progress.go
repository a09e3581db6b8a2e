// Package progress wraps progressbar with enabled/disabled handling.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Spinner is an indeterminate progress indicator whose description carries
// the live stats line. All methods are no-ops when disabled.
type Spinner struct {
	bar *progressbar.ProgressBar
}

// New creates a Spinner. If enabled=false, all methods are no-ops.
func New(enabled bool) *Spinner {
	if !enabled {
		return &Spinner{}
	}
	return &Spinner{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)}
}

// Describe updates the spinner description from a stats Stringer.
func (s *Spinner) Describe(st fmt.Stringer) {
	if s.bar != nil {
		s.bar.Describe(st.String())
	}
}

// Finish clears the spinner and prints a final summary line.
func (s *Spinner) Finish(st fmt.Stringer) {
	if s.bar != nil {
		_ = s.bar.Finish()
		fmt.Fprintln(os.Stderr, "✔ "+st.String())
	}
}
