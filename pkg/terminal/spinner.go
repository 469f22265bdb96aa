package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Spinner provides a simple terminal spinner for slow operations like
// provider connectivity tests.
type Spinner struct {
	out       io.Writer
	message   string
	frames    []string
	current   int
	done      chan struct{}
	mu        sync.Mutex
	style     lipgloss.Style
	startTime time.Time
}

// SpinnerFrames are the default spinner animation frames.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	return NewSpinnerWithOutput(os.Stdout, message)
}

// NewSpinnerWithOutput creates a spinner with custom output.
func NewSpinnerWithOutput(out io.Writer, message string) *Spinner {
	return &Spinner{
		out:     out,
		message: message,
		frames:  SpinnerFrames,
		done:    make(chan struct{}),
		style: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
	}
}

// SetMessage updates the spinner message.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.startTime = time.Now()
	go s.run()
}

func (s *Spinner) run() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := s.frames[s.current%len(s.frames)]
			msg := s.message
			s.current++
			s.mu.Unlock()

			fmt.Fprintf(s.out, "\r%s %s", s.style.Render(frame), msg)
		}
	}
}

// Elapsed returns the time since the spinner started.
func (s *Spinner) Elapsed() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	close(s.done)
	fmt.Fprintf(s.out, "\r\033[K")
}

// StopWithSuccess stops and prints a success message.
func (s *Spinner) StopWithSuccess(message string) {
	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	close(s.done)
	fmt.Fprintf(s.out, "\r\033[K%s %s\n", successStyle.Render("✓"), message)
}

// StopWithError stops and prints an error message.
func (s *Spinner) StopWithError(message string) {
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
		Bold(true)
	close(s.done)
	fmt.Fprintf(s.out, "\r\033[K%s %s\n", errorStyle.Render("✗"), message)
}

// WithSpinner runs fn with a spinner active and stops it according to the
// result.
func WithSpinner[T any](message string, fn func() (T, error)) (T, error) {
	spinner := NewSpinner(message)
	spinner.Start()

	result, err := fn()

	if err != nil {
		spinner.StopWithError(err.Error())
	} else {
		spinner.StopWithSuccess(message)
	}

	return result, err
}
