// Package notifymock provides a testify/mock Notifier double.
package notifymock

import (
	"github.com/stretchr/testify/mock"

	"github.com/dnsentinel/dnsentinel/notify"
)

// Notifier is a mock implementation of notify.Notifier.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Emit(n notify.Notification) error {
	args := m.Called(n)
	return args.Error(0)
}
