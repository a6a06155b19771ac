package engine

import "context"

// turnLimiter bounds the number of turns executing simultaneously across all
// sessions. A zero max disables the limit.
type turnLimiter struct {
	sem chan struct{}
}

func newTurnLimiter(max int) *turnLimiter {
	l := &turnLimiter{}
	if max > 0 {
		l.sem = make(chan struct{}, max)
	}
	return l
}

func (l *turnLimiter) acquire(ctx context.Context) error {
	if l.sem == nil {
		return nil
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *turnLimiter) release() {
	if l.sem != nil {
		<-l.sem
	}
}
