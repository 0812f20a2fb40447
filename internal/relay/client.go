// Package relay provides the live collaboration channel: presence and chat
// push between analysts over an MQTT broker. The engine's data layer never
// depends on the relay being up; when the channel is unavailable the
// session simply runs in degraded mode.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/casetrail/casetrail/internal/conf"
	"github.com/casetrail/casetrail/internal/errors"
	"github.com/casetrail/casetrail/internal/logging"
)

// Client defines the interface for relay channel operations.
type Client interface {
	// Connect attempts to connect to the relay broker. It honors ctx for
	// cancellation and the configured connect timeout.
	Connect(ctx context.Context) error

	// Publish sends a message to the given topic under the configured
	// topic prefix.
	Publish(ctx context.Context, topic, payload string) error

	// IsConnected reports whether the channel is currently up.
	IsConnected() bool

	// Disconnect closes the connection to the broker.
	Disconnect()
}

// Config holds the configuration for the relay client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	TopicPrefix       string
	ConnectTimeout    time.Duration
	ReconnectCooldown time.Duration
}

var (
	relayLogger *slog.Logger
	loggerOnce  sync.Once
	levelVar    = new(slog.LevelVar)
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		var err error
		relayLogger, _, err = logging.NewFileLogger("logs/relay.log", "relay", levelVar)
		if err != nil {
			relayLogger = logging.ForService("relay")
			if relayLogger == nil {
				relayLogger = slog.Default().With("service", "relay")
			}
		}
	})
	return relayLogger
}

// NewConfig builds a relay Config from settings, deriving a client id from
// the node name when none is configured.
func NewConfig(settings *conf.Settings) Config {
	cfg := Config{
		Broker:            settings.Relay.Broker,
		ClientID:          settings.Relay.ClientID,
		Username:          settings.Relay.Username,
		Password:          settings.Relay.Password,
		TopicPrefix:       settings.Relay.TopicPrefix,
		ConnectTimeout:    settings.Relay.ConnectTimeout,
		ReconnectCooldown: settings.Relay.ReconnectCooldown,
	}
	if cfg.ClientID == "" {
		cfg.ClientID = settings.Main.Name
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return cfg
}

// client is the paho-backed Client implementation.
type client struct {
	config   Config
	internal mqtt.Client
	mu       sync.Mutex
}

// NewClient creates a relay client for the given configuration.
func NewClient(config Config) Client {
	return &client{config: config}
}

// Connect dials the broker. Blocks until connected, the configured timeout
// elapses, or ctx is cancelled.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.Broker == "" {
		return errors.Newf("relay broker is not configured").
			Component("relay").
			Category(errors.CategoryConfiguration).
			Build()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(c.config.Broker).
		SetClientID(c.config.ClientID).
		SetUsername(c.config.Username).
		SetPassword(c.config.Password).
		SetConnectTimeout(c.config.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(c.config.ReconnectCooldown).
		SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		getLogger().Warn("relay connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		getLogger().Info("relay connected", "broker", c.config.Broker)
	})

	c.internal = mqtt.NewClient(opts)
	token := c.internal.Connect()

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("relay").
			Category(errors.CategoryTimeout).
			Context("operation", "connect").
			Build()
	case <-done:
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("relay").
			Category(errors.CategoryNetwork).
			Context("operation", "connect").
			Context("broker", c.config.Broker).
			Build()
	}
	return nil
}

// Publish sends payload to prefix/topic.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("relay is not connected").
			Component("relay").
			Category(errors.CategoryNetwork).
			Context("operation", "publish").
			Build()
	}

	full := fmt.Sprintf("%s/%s", c.config.TopicPrefix, topic)
	token := internal.Publish(full, 0, false, payload)
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("relay").
			Category(errors.CategoryTimeout).
			Context("operation", "publish").
			Context("topic", full).
			Build()
	case <-done:
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("relay").
			Category(errors.CategoryNetwork).
			Context("operation", "publish").
			Context("topic", full).
			Build()
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the broker connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internal != nil && c.internal.IsConnected() {
		c.internal.Disconnect(250)
	}
}
