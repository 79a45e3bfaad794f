package gateway

// Dispatcher is the interface services use to push events to readers of a
// scope. The concrete Manager implements this interface.
type Dispatcher interface {
	Publish(scopeKey, event string, data any)
}
