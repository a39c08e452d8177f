// Package resolvermock provides a testify/mock Resolver double.
package resolvermock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dnsentinel/dnsentinel/resolver"
)

// Resolver is a mock implementation of resolver.Resolver.
type Resolver struct {
	mock.Mock
}

func (m *Resolver) Resolve(ctx context.Context, fqdn string) (resolver.Result, error) {
	args := m.Called(ctx, fqdn)
	if v := args.Get(0); v != nil {
		return v.(resolver.Result), args.Error(1)
	}
	return resolver.Result{}, args.Error(1)
}
