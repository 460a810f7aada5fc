package invite

import (
	"io"
	"sync"
	"time"
)

// Ringer plays the incoming call tone.
type Ringer interface {
	Start()
	Stop()
}

// BellRinger rings the terminal bell at a fixed interval.
type BellRinger struct {
	W        io.Writer
	Interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewBellRinger(w io.Writer, interval time.Duration) *BellRinger {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &BellRinger{W: w, Interval: interval}
}

// Start begins ringing. Calling Start while ringing does nothing.
func (b *BellRinger) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return
	}
	stop := make(chan struct{})
	b.stop = stop
	go func() {
		t := time.NewTicker(b.Interval)
		defer t.Stop()
		for {
			_, _ = b.W.Write([]byte("\a"))
			select {
			case <-stop:
				return
			case <-t.C:
			}
		}
	}()
}

// Stop silences the ringer. It is safe to call when not ringing.
func (b *BellRinger) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
}

// Ringing reports whether the ringer is active.
func (b *BellRinger) Ringing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stop != nil
}

type silentRinger struct{}

func (silentRinger) Start() {}
func (silentRinger) Stop()  {}
