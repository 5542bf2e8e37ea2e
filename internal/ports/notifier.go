package ports

// Notifier is the fire-and-forget notification sink switch events are
// published to.
type Notifier interface {
	Send(channel string, payload any)
}

type NopNotifier struct{}

func (NopNotifier) Send(string, any) {}
