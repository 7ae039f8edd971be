// Package presence watches an MQTT occupancy topic and maps its payloads to
// a presence state for the decision engine.
package presence

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/hoveln/framesync/internal/configuration"
	"github.com/hoveln/framesync/internal/decision"
)

// Watcher subscribes to one pair's occupancy topic. Payload values are
// matched case-insensitively against the configured home and away state
// lists; anything else maps to unknown.
type Watcher struct {
	cfg      configuration.PresenceConfiguration
	onChange func(decision.Presence)
	logger   *slog.Logger
	client   paho.Client

	// newClient is the paho constructor. Overridden in tests.
	newClient func(*paho.ClientOptions) paho.Client
}

// New creates a watcher. onChange is invoked on every mapped state change.
func New(cfg configuration.PresenceConfiguration, onChange func(decision.Presence), logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:       cfg,
		onChange:  onChange,
		logger:    logger,
		newClient: paho.NewClient,
	}
}

// Run connects to the broker, subscribes and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(w.cfg.Broker).
		SetClientID("framesync-" + strings.ReplaceAll(w.cfg.Topic, "/", "-")).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	opts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(w.cfg.Topic, 1, w.handleMessage)
		go func() {
			if token.Wait() && token.Error() != nil {
				w.logger.Error("subscribe failed", "topic", w.cfg.Topic, "err", token.Error())
			}
		}()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		w.logger.Warn("broker connection lost", "err", err)
	})

	w.client = w.newClient(opts)
	if token := w.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	w.logger.Debug("watching occupancy", "topic", w.cfg.Topic)

	<-ctx.Done()
	w.client.Disconnect(250)
	return nil
}

func (w *Watcher) handleMessage(_ paho.Client, msg paho.Message) {
	state := Map(string(msg.Payload()), w.cfg.HomeStates, w.cfg.AwayStates)
	w.logger.Debug("occupancy update", "payload", string(msg.Payload()), "state", state)
	w.onChange(state)
}

// Map translates an occupancy payload into a presence state.
func Map(payload string, homeStates, awayStates []string) decision.Presence {
	payload = strings.ToLower(strings.TrimSpace(payload))
	match := func(states []string) bool {
		return slices.ContainsFunc(states, func(s string) bool {
			return strings.ToLower(s) == payload
		})
	}
	switch {
	case match(homeStates):
		return decision.PresenceHome
	case match(awayStates):
		return decision.PresenceAway
	default:
		return decision.PresenceUnknown
	}
}
