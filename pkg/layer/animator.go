package layer

import (
	"context"
	"sync"
	"time"

	"github.com/sandrolain/goviz/pkg/types"
)

// Animator runs a frame callback on a ticker until stopped.
type Animator struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start calls frame every interval until Stop is called or ctx is done. It
// fails if the animator is already running.
func (a *Animator) Start(ctx context.Context, interval time.Duration, frame func(time.Time)) error {
	if interval <= 0 {
		return types.Errorf(types.ErrInvalidParameter, "frame interval must be positive, got %s", interval)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done != nil {
		select {
		case <-a.done:
		default:
			return types.NewError(types.ErrInvalidParameter, "animator is already running")
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel, a.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				frame(t)
			}
		}
	}()
	return nil
}

// Running reports whether the frame loop is active.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done == nil {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// Stop ends the frame loop and waits for it to return. Stopping an idle
// animator is a no-op.
func (a *Animator) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Animate draws l on every frame while it is animated, and once more when
// it stops being animated. Draw errors are logged.
func (l *Layer) Animate(ctx context.Context, a *Animator, interval time.Duration) error {
	animated := true
	return a.Start(ctx, interval, func(time.Time) {
		now := l.Animated()
		if !now && !animated {
			return
		}
		animated = now
		if err := l.Draw(); err != nil {
			l.options.Logger.Warn("drawing animated layer", "layer", l.id, "error", err)
		}
	})
}
