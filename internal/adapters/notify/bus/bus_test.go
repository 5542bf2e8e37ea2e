package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversToSubscribersInOrder(t *testing.T) {
	t.Parallel()

	b := New()
	var got []any
	b.Subscribe("account:switch-started", func(payload any) {
		got = append(got, payload)
	})
	b.Subscribe("account:switch-started", func(payload any) {
		got = append(got, payload)
	})

	b.Send("account:switch-started", "one")

	assert.Equal(t, []any{"one", "one"}, got)
}

func TestBusDropsUnsubscribedChannels(t *testing.T) {
	t.Parallel()

	b := New()
	delivered := false
	b.Subscribe("account:switch-completed", func(any) {
		delivered = true
	})

	b.Send("account:switch-failed", "ignored")

	assert.False(t, delivered)
}
