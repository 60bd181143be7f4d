package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/doeshing/deskgate/internal/application/pipeline"
	"github.com/doeshing/deskgate/internal/domain"
)

// Spinner displays an animated spinner while an action runs.
type Spinner struct {
	frames   []string
	interval time.Duration
	writer   io.Writer
	label    string
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewSpinner creates a new spinner
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		writer:   w,
	}
}

// Start begins the animation next to label. Starting a running spinner only
// swaps the label.
func (s *Spinner) Start(label string) {
	s.mu.Lock()
	s.label = label
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stop := make(chan struct{})
	s.stopChan = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for idx := 0; ; idx++ {
			s.mu.Lock()
			label := s.label
			s.mu.Unlock()
			fmt.Fprintf(s.writer, "\r%s %s ", s.frames[idx%len(s.frames)], label)
			select {
			case <-stop:
				// Clear the spinner line
				fmt.Fprintf(s.writer, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the spinner animation and clears its line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// liveProgress prints each result as soon as it is audited and animates the
// wait for the next one.
type liveProgress struct {
	renderer *Renderer
	spinner  *Spinner
	total    int
	done     int
}

func newLiveProgress(renderer *Renderer, status io.Writer) *liveProgress {
	p := &liveProgress{renderer: renderer}
	if isTerminal(status) {
		p.spinner = NewSpinner(status)
	}
	return p
}

func (p *liveProgress) Started(_ string, total int) {
	p.total = total
	p.renderer.streamed = true
	p.spin()
}

func (p *liveProgress) Finished(result domain.ExecutionResult) {
	p.done++
	p.stop()
	p.renderer.result(result)
	if p.done < p.total {
		p.spin()
	}
}

func (p *liveProgress) spin() {
	if p.spinner != nil {
		p.spinner.Start(fmt.Sprintf("action %d of %d", p.done+1, p.total))
	}
}

func (p *liveProgress) stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

var _ pipeline.Progress = (*liveProgress)(nil)
