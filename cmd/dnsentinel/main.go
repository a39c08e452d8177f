// Command dnsentinel resolves monitored domains on a fixed interval,
// runs the change analyzers over what changed, and emits notifications
// for anomalous, coordinated, or suspicious DNS changes.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/dnsentinel/dnsentinel/domainstate"
	"github.com/dnsentinel/dnsentinel/metrics"
	"github.com/dnsentinel/dnsentinel/notify"
	"github.com/dnsentinel/dnsentinel/observer"
	apicfg "github.com/dnsentinel/dnsentinel/pkg/apis/dnsentinel"
	"github.com/dnsentinel/dnsentinel/resolver"
	"github.com/dnsentinel/dnsentinel/scheduler"
	"github.com/dnsentinel/dnsentinel/store"
)

func main() {
	cfg, err := apicfg.NewConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	configureLogger(cfg)
	log.Infof("dnsentinel %s starting, watching %d static domain(s)", apicfg.Version, len(cfg.StaticDomains))

	if cfg.DryRun {
		log.Info("dry-run mode: notifications will be logged, not emitted")
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	ctx, cancel := context.WithCancel(context.Background())
	go serveMetrics(cfg.MetricsAddress, reg)
	go handleSigterm(cancel)

	backend, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	repo := domainstate.New(backend)

	res := resolver.New(resolver.Config{
		Endpoint:      cfg.DoHEndpoint,
		Timeout:       10 * time.Second,
		RatePerSecond: cfg.Concurrency * 2,
	})

	notifier, err := buildNotifier(cfg)
	if err != nil {
		log.Fatalf("notifier init failed: %v", err)
	}

	logEntry := log.NewEntry(log.StandardLogger())
	obs := observer.New(res, repo, notifier, logEntry)
	sched := scheduler.New(obs, repo, notifier, scheduler.StaticAndDynamic{
		StaticDomains: cfg.StaticDomains,
		DynamicSource: cfg.DynamicSource,
		Repo:          repo,
	}, logEntry)
	sched.Concurrency = cfg.Concurrency

	versionID := os.Getenv("DNSENTINEL_VERSION_ID")

	ticker := time.NewTicker(cfg.ResolveEvery)
	defer ticker.Stop()

	log.Infof("resolving every %s across up to %d concurrent domains", cfg.ResolveEvery, cfg.Concurrency)
	for {
		if err := sched.Tick(ctx, versionID); err != nil {
			log.WithError(err).Warn("tick failed")
		}
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
		}
	}
}

func configureLogger(cfg *apicfg.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	ll, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level: %v", err)
	}
	log.SetLevel(ll)
}

func handleSigterm(cancel func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, os.Interrupt)
	<-signals
	log.Info("received termination signal, shutting down")
	cancel()
}

func serveMetrics(address string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Debugf("serving healthz and metrics on %s", address)
	log.Fatal(http.ListenAndServe(address, mux))
}

func buildStore(cfg *apicfg.Config) (store.Store, error) {
	switch cfg.Store {
	case apicfg.StoreEtcd:
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   []string{cfg.EtcdURL},
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return store.NewEtcdStore(cli), nil
	case apicfg.StoreDynamo:
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, err
		}
		return store.NewDynamoStore(dynamodb.New(sess), cfg.DynamoTable), nil
	default:
		return store.NewMemoryStore(), nil
	}
}

func buildNotifier(cfg *apicfg.Config) (notify.Notifier, error) {
	if cfg.DryRun || cfg.WebhookURL == "" {
		return notify.NewLoggingNotifier(log.StandardLogger()), nil
	}
	return notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout), nil
}
