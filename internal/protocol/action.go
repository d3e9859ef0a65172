// Package protocol defines the wire-level vocabulary shared by every node:
// the closed action set, the per-message context envelope, and the ACK/NACK
// and error shapes returned synchronously on every endpoint.
package protocol

// Action is one of the fixed protocol verbs. The set is closed: handlers are
// mapped per action at wiring time, never looked up from request strings.
type Action string

const (
	ActionSearch  Action = "search"
	ActionSelect  Action = "select"
	ActionInit    Action = "init"
	ActionConfirm Action = "confirm"
	ActionStatus  Action = "status"
	ActionTrack   Action = "track"
	ActionCancel  Action = "cancel"
	ActionUpdate  Action = "update"
	ActionRating  Action = "rating"
	ActionSupport Action = "support"
)

const callbackPrefix = "on_"

// Actions lists every request action in the vocabulary.
func Actions() []Action {
	return []Action{
		ActionSearch, ActionSelect, ActionInit, ActionConfirm, ActionStatus,
		ActionTrack, ActionCancel, ActionUpdate, ActionRating, ActionSupport,
	}
}

// Valid reports whether a is a known request action.
func (a Action) Valid() bool {
	switch a {
	case ActionSearch, ActionSelect, ActionInit, ActionConfirm, ActionStatus,
		ActionTrack, ActionCancel, ActionUpdate, ActionRating, ActionSupport:
		return true
	}
	return false
}

// Callback returns the asynchronous reply form of a request action.
func (a Action) Callback() Action {
	return Action(callbackPrefix + string(a))
}

// IsCallback reports whether a is a callback action.
func (a Action) IsCallback() bool {
	_, ok := a.Request()
	return ok
}

// Request maps a callback action back to the request it answers.
func (a Action) Request() (Action, bool) {
	s := string(a)
	if len(s) <= len(callbackPrefix) || s[:len(callbackPrefix)] != callbackPrefix {
		return "", false
	}
	req := Action(s[len(callbackPrefix):])
	if !req.Valid() {
		return "", false
	}
	return req, true
}
