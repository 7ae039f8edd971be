// Package app wires the configured pairs, the HTTP surface and the metrics
// exporter into a task manager.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clambin/go-common/taskmanager"
	"github.com/clambin/go-common/taskmanager/httpserver"
	promserver "github.com/clambin/go-common/taskmanager/prometheus"
	"github.com/hoveln/framesync/internal/api"
	"github.com/hoveln/framesync/internal/collector"
	"github.com/hoveln/framesync/internal/configuration"
	"github.com/hoveln/framesync/internal/controller"
	"github.com/hoveln/framesync/internal/health"
	"github.com/hoveln/framesync/internal/notifier"
	"github.com/hoveln/framesync/pkg/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/spf13/viper"
)

func New(cfg *viper.Viper, registry prometheus.Registerer, logger *slog.Logger) (*taskmanager.Manager, error) {
	pairs, err := loadPairs(cfg)
	if err != nil {
		return nil, err
	}
	if len(pairs.Pairs) == 0 {
		return nil, errors.New("no pairs configured")
	}
	return taskmanager.New(makeTasks(cfg, pairs, registry, logger)...), nil
}

// loadPairs reads pairs.yaml next to the main configuration file, unless a
// path is set explicitly.
func loadPairs(cfg *viper.Viper) (configuration.Configuration, error) {
	path := cfg.GetString("pairs.path")
	if path == "" {
		path = filepath.Join(filepath.Dir(cfg.ConfigFileUsed()), "pairs.yaml")
	}
	f, err := os.Open(path)
	if err != nil {
		return configuration.Configuration{}, fmt.Errorf("pairs: %w", err)
	}
	defer func() { _ = f.Close() }()
	return configuration.Load(f)
}

func makeTasks(cfg *viper.Viper, pairs configuration.Configuration, registry prometheus.Registerer, l *slog.Logger) []taskmanager.Task {
	var tasks []taskmanager.Task

	statusPub := pubsub.New[controller.Status](l.With(slog.String("component", "pubsub")))

	// event sinks
	sinks := notifier.Notifiers{notifier.SLogNotifier{Logger: l.With(slog.String("component", "notifier"))}}
	if token := cfg.GetString("slack.token"); token != "" {
		sinks = append(sinks, &notifier.SlackNotifier{
			Logger:      l.With(slog.String("component", "slack")),
			SlackSender: slack.New(token),
		})
	}

	// pairs
	pairRegistry := api.Default()
	for _, pair := range pairs.Pairs {
		tasks = append(tasks, newPairTask(pair, pairRegistry, sinks, statusPub, l.With(slog.String("pair", pair.Name))))
	}

	// Collector
	coll := collector.New(statusPub, l.With(slog.String("component", "collector")))
	if registry != nil {
		registry.MustRegister(coll)
	}
	tasks = append(tasks, coll)

	// Prometheus server
	tasks = append(tasks, promserver.New(promserver.WithAddr(cfg.GetString("exporter.addr"))))

	// health endpoint and control API
	h := health.New(statusPub, l.With(slog.String("component", "health")))
	tasks = append(tasks, h)
	r := http.NewServeMux()
	r.Handle("/health", h)
	api.NewServer(pairRegistry, l.With(slog.String("component", "api"))).Register(r)
	tasks = append(tasks, httpserver.New(cfg.GetString("health.addr"), r))

	return tasks
}
