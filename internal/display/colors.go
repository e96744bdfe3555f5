// Package display renders operation reports for the terminal: colorized
// when the output is an interactive terminal, plain otherwise.
package display

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Tone is a semantic output tone mapped onto terminal colors.
type Tone int

const (
	ToneDefault Tone = iota
	ToneHeading
	ToneSuccess
	ToneWarning
	ToneError
	ToneMuted
)

// ColorSystem applies semantic tones to text, falling back to plain text
// on non-interactive or color-hostile terminals.
type ColorSystem struct {
	enabled bool
	profile termenv.Profile
	tones   map[Tone]*color.Color
}

// NewColorSystem creates a color system with terminal detection. Passing
// noColor forces plain output regardless of the terminal.
func NewColorSystem(noColor bool) *ColorSystem {
	return &ColorSystem{
		enabled: !noColor && detectColorSupport(),
		profile: termenv.ColorProfile(),
		tones: map[Tone]*color.Color{
			ToneHeading: color.New(color.FgCyan, color.Bold),
			ToneSuccess: color.New(color.FgGreen),
			ToneWarning: color.New(color.FgYellow),
			ToneError:   color.New(color.FgRed, color.Bold),
			ToneMuted:   color.New(color.FgHiBlack),
		},
	}
}

func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// Sprint renders text in the given tone. Terminals without color support
// (an ascii profile) always get plain text.
func (cs *ColorSystem) Sprint(tone Tone, text string) string {
	if !cs.enabled || cs.profile == termenv.Ascii {
		return text
	}
	c, ok := cs.tones[tone]
	if !ok {
		return text
	}
	return c.Sprint(text)
}

// Sprintf renders formatted text in the given tone.
func (cs *ColorSystem) Sprintf(tone Tone, format string, args ...interface{}) string {
	return cs.Sprint(tone, fmt.Sprintf(format, args...))
}

// Enabled reports whether colored output is active.
func (cs *ColorSystem) Enabled() bool {
	return cs.enabled
}
