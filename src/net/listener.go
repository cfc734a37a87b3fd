package net

// Listener receives the envelopes decoded by an Overlay.
type Listener interface {
	OnMessage(peerID string, env *Envelope)
}

// ListenerFunc adapts an ordinary function to the Listener interface.
type ListenerFunc func(peerID string, env *Envelope)

// OnMessage implements Listener.
func (f ListenerFunc) OnMessage(peerID string, env *Envelope) {
	f(peerID, env)
}
