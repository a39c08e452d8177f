package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dnsentinel/dnsentinel/domainstate"
	"github.com/dnsentinel/dnsentinel/notify"
	"github.com/dnsentinel/dnsentinel/notify/notifymock"
	"github.com/dnsentinel/dnsentinel/observer"
	"github.com/dnsentinel/dnsentinel/resolver"
	"github.com/dnsentinel/dnsentinel/resolver/resolvermock"
	"github.com/dnsentinel/dnsentinel/store"
)

func TestTickChecksEveryDomainAndWritesStatus(t *testing.T) {
	ctx := context.Background()
	repo := domainstate.New(store.NewMemoryStore())

	res := &resolvermock.Resolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(resolver.Result{
		ARecords: []resolver.ARecord{{IP: "1.1.1.1", TTL: 300}},
		SOA:      &resolver.SOA{Serial: "1"},
	}, nil)

	notifier := &notifymock.Notifier{}
	notifier.On("Emit", mock.Anything).Return(nil)

	obs := observer.New(res, repo, notifier, nil)
	_, err := repo.AddDynamic(ctx, "dynamic.example.com")
	require.NoError(t, err)

	sched := New(obs, repo, notifier, StaticAndDynamic{
		StaticDomains: []string{"static.example.com"},
		DynamicSource: true,
		Repo:          repo,
	}, nil)
	sched.Now = func() time.Time { return time.Now() }

	require.NoError(t, sched.Tick(ctx, ""))

	status, ok, err := repo.GetStatus(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, status.DomainsMonitored)
}

func TestTickIgnoresDynamicDomainsWhenDynamicSourceDisabled(t *testing.T) {
	ctx := context.Background()
	repo := domainstate.New(store.NewMemoryStore())

	res := &resolvermock.Resolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(resolver.Result{
		ARecords: []resolver.ARecord{{IP: "1.1.1.1", TTL: 300}},
		SOA:      &resolver.SOA{Serial: "1"},
	}, nil)

	notifier := &notifymock.Notifier{}
	notifier.On("Emit", mock.Anything).Return(nil)

	obs := observer.New(res, repo, notifier, nil)
	_, err := repo.AddDynamic(ctx, "dynamic.example.com")
	require.NoError(t, err)

	sched := New(obs, repo, notifier, StaticAndDynamic{
		StaticDomains: []string{"static.example.com"},
		DynamicSource: false,
		Repo:          repo,
	}, nil)
	sched.Now = func() time.Time { return time.Now() }

	require.NoError(t, sched.Tick(ctx, ""))

	status, ok, err := repo.GetStatus(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, status.DomainsMonitored)
}

func TestTickEmitsNewDeploymentOnVersionChange(t *testing.T) {
	ctx := context.Background()
	repo := domainstate.New(store.NewMemoryStore())

	res := &resolvermock.Resolver{}
	res.On("Resolve", mock.Anything, mock.Anything).Return(resolver.Result{
		ARecords: []resolver.ARecord{{IP: "1.1.1.1", TTL: 300}},
	}, nil)

	var captured []notify.Notification
	notifier := &notifymock.Notifier{}
	notifier.On("Emit", mock.Anything).Run(func(args mock.Arguments) {
		captured = append(captured, args.Get(0).(notify.Notification))
	}).Return(nil)

	obs := observer.New(res, repo, notifier, nil)
	sched := New(obs, repo, notifier, StaticAndDynamic{StaticDomains: []string{"static.example.com"}, Repo: repo}, nil)

	require.NoError(t, sched.Tick(ctx, "v2"))

	found := false
	for _, n := range captured {
		if n.Title == "New Deployment" {
			found = true
		}
	}
	require.True(t, found)
}
