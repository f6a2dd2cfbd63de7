// Package mqtt is the signaling transport: one broker connection per device,
// registered with a last will on the device's status topic.
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/app/session"
	"github.com/dkeye/CamView/internal/config"
	"github.com/dkeye/CamView/internal/core"
	"github.com/dkeye/CamView/internal/domain"
)

var (
	ErrNotConnected     = errors.New("mqtt: not connected")
	ErrSubscribeTimeout = errors.New("mqtt: subscribe timeout")
)

const (
	subscribeTimeout  = 5 * time.Second
	disconnectQuiesce = 250
	stateQueueSize    = 16
)

// Transport delivers state changes from one goroutine, in the order they were
// recorded, whichever paho goroutine raised them.
type Transport struct {
	device domain.DeviceID
	client paho.Client
	logger zerolog.Logger

	mu     sync.Mutex
	state  core.TransportState
	events chan core.TransportState
	done   chan struct{}
	once   sync.Once

	hmu      sync.RWMutex
	handlers []func(core.TransportState)
}

// NewTransport builds the client; nothing is dialled until Connect.
func NewTransport(device domain.DeviceID, cfg config.MQTTConfig) *Transport {
	t := &Transport{
		device: device,
		state:  core.TransportDisconnected,
		events: make(chan core.TransportState, stateQueueSize),
		done:   make(chan struct{}),
		logger: log.With().Str("module", "mqtt").Str("device", string(device)).Logger(),
	}
	t.client = paho.NewClient(t.buildOptions(cfg))
	go t.run()
	return t
}

func clientID(device domain.DeviceID) string {
	return fmt.Sprintf("client_%s-%s", device, uuid.NewString()[:8])
}

func (t *Transport) buildOptions(cfg config.MQTTConfig) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(clientID(t.device))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)

	// fixed reconnect period
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(cfg.ReconnectPeriod)
	opts.SetMaxReconnectInterval(cfg.ReconnectPeriod)

	opts.SetWill(session.StatusTopic(t.device), session.LastWillPayload, core.QoSAtMostOnce, false)
	opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}) //nolint:gosec

	opts.SetOnConnectHandler(func(paho.Client) {
		t.logger.Info().Str("broker", cfg.BrokerURL).Msg("mqtt connection established")
		t.setState(core.TransportConnected)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		t.logger.Warn().Err(err).Dur("retry_in", cfg.ReconnectPeriod).Msg("mqtt connection lost, will auto-reconnect")
		t.setState(core.TransportError)
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		t.setState(core.TransportConnecting)
	})
	opts.SetConnectionAttemptHandler(func(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
		t.logger.Debug().Str("broker", broker.String()).Msg("dialing broker")
		return tlsCfg
	})
	return opts
}

func (t *Transport) OnStateChange(fn func(core.TransportState)) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	t.handlers = append(t.handlers, fn)
}

func (t *Transport) State() core.TransportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// setState records s and queues it while still holding mu, so the queue order
// is the order of the recorded transitions. Nothing is recorded after Disconnect.
func (t *Transport) setState(s core.TransportState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
		return
	default:
	}
	if t.state == s {
		return
	}
	t.state = s
	select {
	case <-t.done:
	case t.events <- s:
	}
}

func (t *Transport) run() {
	for {
		select {
		case s := <-t.events:
			t.deliver(s)
		case <-t.done:
			for {
				select {
				case s := <-t.events:
					t.deliver(s)
				default:
					return
				}
			}
		}
	}
}

func (t *Transport) deliver(s core.TransportState) {
	t.hmu.RLock()
	handlers := append(([]func(core.TransportState))(nil), t.handlers...)
	t.hmu.RUnlock()
	for _, h := range handlers {
		h(s)
	}
}

// Connect returns immediately; with ConnectRetry the client keeps dialling in
// the background and the outcome arrives through OnStateChange.
func (t *Transport) Connect() error {
	t.setState(core.TransportConnecting)
	token := t.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.logger.Error().Err(err).Msg("mqtt connect failed")
			t.setState(core.TransportError)
		}
	}()
	return nil
}

func (t *Transport) Disconnect() {
	if t.client.IsConnected() {
		t.client.Disconnect(disconnectQuiesce)
		t.logger.Info().Msg("mqtt disconnected")
	}
	t.setState(core.TransportDisconnected)
	t.once.Do(func() { close(t.done) })
}

// Publish is fire-and-forget: the token is not awaited, failures are logged.
func (t *Transport) Publish(topic string, qos byte, payload []byte) error {
	if !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := t.client.Publish(topic, qos, false, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			t.logger.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		}
	}()
	t.logger.Debug().Str("topic", topic).Uint8("qos", qos).Int("size", len(payload)).Msg("published")
	return nil
}

func (t *Transport) Subscribe(topic string, qos byte, handler func([]byte)) error {
	token := t.client.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		handler(m.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("%w: %s", ErrSubscribeTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Unsubscribe(topic string) error {
	if !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := t.client.Unsubscribe(topic)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("mqtt: unsubscribe %s: timeout", topic)
	}
	return token.Error()
}
