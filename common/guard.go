package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module has been administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard aborts an operation when the owning module is paused. A nil view or
// empty module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
