package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dnsentinel/dnsentinel/domainstate"
	"github.com/dnsentinel/dnsentinel/notify/notifymock"
	"github.com/dnsentinel/dnsentinel/resolver"
	"github.com/dnsentinel/dnsentinel/resolver/resolvermock"
	"github.com/dnsentinel/dnsentinel/store"
)

var errResolve = errors.New("dial tcp: timeout")

func newObserver(res *resolvermock.Resolver, notifier *notifymock.Notifier, now time.Time) (*Observer, *domainstate.Repo) {
	repo := domainstate.New(store.NewMemoryStore())
	obs := New(res, repo, notifier, nil)
	obs.Now = func() time.Time { return now }
	return obs, repo
}

func TestCheckFirstSeenIsSilent(t *testing.T) {
	now := time.Now()
	res := &resolvermock.Resolver{}
	res.On("Resolve", context.Background(), "example.com").Return(resolver.Result{
		ARecords: []resolver.ARecord{{IP: "1.2.3.4", TTL: 300}},
		SOA:      &resolver.SOA{Serial: "2024010101"},
	}, nil)
	notifier := &notifymock.Notifier{}

	obs, repo := newObserver(res, notifier, now)
	err := obs.Check(context.Background(), "example.com")
	require.NoError(t, err)

	ms, err := repo.Load(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, domainstate.Resolved, ms.State)
	assert.Equal(t, []string{"1.2.3.4"}, ms.LastIPs)
	notifier.AssertNotCalled(t, "Emit")
}

func TestCheckTransportErrorEmitsAndSkipsState(t *testing.T) {
	now := time.Now()
	res := &resolvermock.Resolver{}
	res.On("Resolve", context.Background(), "example.com").Return(nil, errResolve)
	notifier := &notifymock.Notifier{}
	notifier.On("Emit", mock.Anything).Return(nil)

	obs, repo := newObserver(res, notifier, now)
	err := obs.Check(context.Background(), "example.com")
	require.NoError(t, err)

	ms, err := repo.Load(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, domainstate.Unseen, ms.State)
	notifier.AssertCalled(t, "Emit", mock.Anything)
}

func TestCheckNoAuthorityTransitionsOnce(t *testing.T) {
	now := time.Now()
	res := &resolvermock.Resolver{}
	res.On("Resolve", context.Background(), "example.com").Return(resolver.Result{NoAuthority: true}, nil)
	notifier := &notifymock.Notifier{}
	notifier.On("Emit", mock.Anything).Return(nil)

	obs, repo := newObserver(res, notifier, now)
	require.NoError(t, obs.Check(context.Background(), "example.com"))
	require.NoError(t, obs.Check(context.Background(), "example.com"))

	ms, err := repo.Load(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, domainstate.NoAuthority, ms.State)
	notifier.AssertNumberOfCalls(t, "Emit", 1)
}

func TestCheckIPChangeRunsAnalyzerAndNotifies(t *testing.T) {
	now := time.Date(2026, time.August, 4, 10, 0, 0, 0, time.UTC) // Tuesday
	res := &resolvermock.Resolver{}
	res.On("Resolve", context.Background(), "example.com").Return(resolver.Result{
		ARecords: []resolver.ARecord{{IP: "9.9.9.9", TTL: 3600}},
		SOA:      &resolver.SOA{Serial: "2024010102"},
	}, nil)
	notifier := &notifymock.Notifier{}
	notifier.On("Emit", mock.Anything).Return(nil)

	obs, repo := newObserver(res, notifier, now)
	ctx := context.Background()
	require.NoError(t, repo.WriteResolved(ctx, "example.com", []string{"5.5.5.5"}, "2024010101"))

	require.NoError(t, obs.Check(ctx, "example.com"))

	ms, err := repo.Load(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"9.9.9.9"}, ms.LastIPs)
	notifier.AssertCalled(t, "Emit", mock.Anything)
}

func TestCheckSerialOnlyChangeEmitsZoneUpdated(t *testing.T) {
	now := time.Now()
	res := &resolvermock.Resolver{}
	res.On("Resolve", context.Background(), "example.com").Return(resolver.Result{
		ARecords: []resolver.ARecord{{IP: "5.5.5.5", TTL: 300}},
		SOA:      &resolver.SOA{Serial: "2024010103"},
	}, nil)
	notifier := &notifymock.Notifier{}
	notifier.On("Emit", mock.Anything).Return(nil)

	obs, repo := newObserver(res, notifier, now)
	ctx := context.Background()
	require.NoError(t, repo.WriteResolved(ctx, "example.com", []string{"5.5.5.5"}, "2024010101"))

	require.NoError(t, obs.Check(ctx, "example.com"))

	ms, err := repo.Load(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "2024010103", ms.LastSerial)
	notifier.AssertNumberOfCalls(t, "Emit", 1)
}
