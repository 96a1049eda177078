package types

// Event is the structured notification emitted by the ledger engines. The
// attribute map carries string-rendered values so events can be logged or
// serialized without knowledge of the emitting module.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
