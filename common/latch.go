package common

import "errors"

var ErrReentrantCall = errors.New("reentrant call rejected")

// Latch is an explicit operation-in-flight flag. The host executes ledger
// operations strictly sequentially, so the latch never sees contention; it
// exists to reject reentrant calls issued by external collaborators while one
// of our own operations is still outstanding.
type Latch struct {
	busy bool
}

// Enter marks the critical section occupied. Callers must pair every
// successful Enter with Exit on all return paths, including error paths.
func (l *Latch) Enter() error {
	if l == nil {
		return nil
	}
	if l.busy {
		return ErrReentrantCall
	}
	l.busy = true
	return nil
}

// Exit clears the operation-in-flight flag.
func (l *Latch) Exit() {
	if l == nil {
		return
	}
	l.busy = false
}
