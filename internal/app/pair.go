package app

import (
	"context"
	"log/slog"

	"github.com/hoveln/framesync/internal/api"
	"github.com/hoveln/framesync/internal/configuration"
	"github.com/hoveln/framesync/internal/controller"
	"github.com/hoveln/framesync/internal/device"
	"github.com/hoveln/framesync/internal/presence"
	"github.com/hoveln/framesync/internal/source"
	"github.com/hoveln/framesync/pkg/pubsub"
	"golang.org/x/sync/errgroup"
)

// pairTask bundles one pair's controller, source tracker and presence
// watcher into a single task. Setup and teardown bracket the run.
type pairTask struct {
	cfg        configuration.PairConfiguration
	controller *controller.Controller
	tracker    *source.Tracker
	watcher    *presence.Watcher
	registry   *api.Registry
	logger     *slog.Logger
}

func newPairTask(cfg configuration.PairConfiguration, registry *api.Registry, notifier controller.Notifier, statusPub *pubsub.Publisher[controller.Status], logger *slog.Logger) *pairTask {
	client := device.NewWSClient(device.Config{
		URL:           cfg.Target.URL,
		MACAddress:    cfg.Target.MAC,
		BroadcastAddr: cfg.Target.Broadcast,
		PollInterval:  cfg.Enforcement.VerifyInterval,
	}, logger.With(slog.String("component", "device")))

	p := pairTask{
		cfg:        cfg,
		registry:   registry,
		controller: controller.New(cfg, client, notifier, statusPub, logger.With(slog.String("component", "controller"))),
		logger:     logger,
	}
	p.tracker = source.New(source.Config{
		URL:        cfg.Source.URL,
		Debounce:   cfg.Source.Debounce,
		Grace:      cfg.Source.Grace,
		ActiveMode: cfg.Source.ActiveMode,
	}, p.controller.OnSourceStateChange, logger.With(slog.String("component", "source")))
	p.controller.SourceConnected = p.tracker.IsConnected

	if cfg.Presence.Enabled {
		p.watcher = presence.New(cfg.Presence, p.controller.OnPresenceChange, logger.With(slog.String("component", "presence")))
	}
	return &p
}

// Run brings the pair up, supervises its tasks until ctx is cancelled, then
// tears everything down.
func (p *pairTask) Run(ctx context.Context) error {
	if err := p.controller.Setup(ctx); err != nil {
		return err
	}
	p.registry.Acquire()
	p.registry.Add(p.cfg.Name, p.controller)
	defer func() {
		p.registry.Remove(p.cfg.Name)
		p.registry.Release()
		if err := p.tracker.Close(); err != nil {
			p.logger.Warn("source teardown failed", "err", err)
		}
		if err := p.controller.Close(); err != nil {
			p.logger.Warn("controller teardown failed", "err", err)
		}
	}()

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.controller.Run(groupCtx) })
	g.Go(func() error { return p.tracker.Run(groupCtx) })
	if p.watcher != nil {
		g.Go(func() error { return p.watcher.Run(groupCtx) })
	}
	return g.Wait()
}
