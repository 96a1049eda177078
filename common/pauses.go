package common

// Pauses is the production PauseView: an in-memory switchboard toggled by
// admin calls.
type Pauses struct {
	halted map[string]bool
}

func NewPauses() *Pauses {
	return &Pauses{halted: make(map[string]bool)}
}

func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	return p.halted[module]
}

// Pause halts the named module.
func (p *Pauses) Pause(module string) {
	if p == nil || module == "" {
		return
	}
	p.halted[module] = true
}

// Resume clears the halt for the named module.
func (p *Pauses) Resume(module string) {
	if p == nil {
		return
	}
	delete(p.halted, module)
}
