package monitor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsolePrompter asks for accident confirmation on a terminal. The answer
// is read on a background goroutine so the detection pipeline never blocks
// on the driver.
type ConsolePrompter struct {
	Out io.Writer
	In  io.Reader

	mu     sync.Mutex
	reader *bufio.Reader
}

func (p *ConsolePrompter) Open(s Snapshot, respond func(okay bool)) error {
	if p.Out == nil || p.In == nil {
		return fmt.Errorf("prompter: no terminal attached")
	}

	_, err := fmt.Fprintf(p.Out,
		"\n*** POSSIBLE ACCIDENT DETECTED ***\n"+
			"Location: %.6f, %.6f  Speed: %.1f km/h  Drowsy: %v  Oversped: %v\n"+
			"Emergency services have been notified.\n"+
			"Type 'ok' if this was a false alarm, anything else to keep the record: ",
		s.Location[0], s.Location[1], s.SpeedKmh, s.IsDrowsy, s.IsOversped)
	if err != nil {
		return fmt.Errorf("prompter: cannot display dialog: %w", err)
	}

	p.mu.Lock()
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	reader := p.reader
	p.mu.Unlock()

	go func() {
		line, err := reader.ReadString('\n')
		if err != nil {
			// Input closed: same as dismissing the dialog unanswered.
			respond(false)
			return
		}
		respond(strings.EqualFold(strings.TrimSpace(line), "ok"))
	}()
	return nil
}
