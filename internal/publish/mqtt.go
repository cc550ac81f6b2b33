// internal/publish/mqtt.go
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/coupler-io/internal/decode"
	"github.com/tamzrod/coupler-io/internal/writer"
)

const (
	connectTimeout = 10 * time.Second
	opTimeout      = 5 * time.Second
)

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string
	QoS      byte
	Retain   bool
}

// CommandHandler executes a write command received over MQTT.
type CommandHandler func(ctx context.Context, cmd writer.Command) (writer.Result, error)

// Publisher sends readings to the broker and accepts write commands.
type Publisher struct {
	cfg    Config
	client mqtt.Client
	log    zerolog.Logger
}

// New builds a publisher with auto-reconnect enabled. Call Connect before use.
func New(cfg Config, log zerolog.Logger) *Publisher {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return NewWithClient(cfg, mqtt.NewClient(opts), log)
}

// NewWithClient wraps an existing client.
func NewWithClient(cfg Config, client mqtt.Client, log zerolog.Logger) *Publisher {
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")
	return &Publisher{cfg: cfg, client: client, log: log}
}

func (p *Publisher) Connect() error {
	tok := p.client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publish: connect %s: timeout", p.cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish: connect %s: %w", p.cfg.Broker, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// ReadingTopic is <prefix>/<card-topic>/<channel>.
func ReadingTopic(prefix string, r decode.Reading) string {
	return prefix + "/" + Segment(r.Topic) + "/" + strconv.Itoa(r.Channel)
}

// Segment makes a card topic safe to publish under: wildcard characters
// are replaced and surrounding slashes trimmed.
func Segment(s string) string {
	s = strings.Trim(s, "/")
	s = strings.NewReplacer("+", "_", "#", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}

// Publish sends one reading as JSON.
func (p *Publisher) Publish(r decode.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("publish: encode: %w", err)
	}
	topic := ReadingTopic(p.cfg.Prefix, r)

	tok := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !tok.WaitTimeout(opTimeout) {
		return fmt.Errorf("publish: %s: timeout", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish: %s: %w", topic, err)
	}
	return nil
}

// CommandTopic covers both command shapes; "#" also matches the parent
// level, so <prefix>/cmd itself is included.
func (p *Publisher) CommandTopic() string {
	return p.cfg.Prefix + "/cmd/#"
}

// Subscribe routes command messages to h. ctx bounds each command.
func (p *Publisher) Subscribe(ctx context.Context, h CommandHandler) error {
	topic := p.CommandTopic()
	cb := func(_ mqtt.Client, msg mqtt.Message) {
		p.handle(ctx, h, msg)
	}

	tok := p.client.Subscribe(topic, p.cfg.QoS, cb)
	if !tok.WaitTimeout(opTimeout) {
		return fmt.Errorf("publish: subscribe %s: timeout", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish: subscribe %s: %w", topic, err)
	}
	p.log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

func (p *Publisher) handle(ctx context.Context, h CommandHandler, msg mqtt.Message) {
	cmd, err := ParseCommand(p.cfg.Prefix, msg.Topic(), msg.Payload())
	if err != nil {
		p.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("bad command")
		return
	}
	if _, err := h(ctx, cmd); err != nil {
		p.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("command failed")
	}
}

// ParseCommand accepts both command shapes:
//
//	<prefix>/cmd                   payload {"card": ..., "channel": N, "value": ...}
//	<prefix>/cmd/<target>/<ch>     payload is the value
func ParseCommand(prefix, topic string, payload []byte) (writer.Command, error) {
	base := prefix + "/cmd"

	if topic == base {
		var cmd writer.Command
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&cmd); err != nil {
			return writer.Command{}, fmt.Errorf("publish: command payload: %w", err)
		}
		return cmd, nil
	}

	route, ok := strings.CutPrefix(topic, base+"/")
	if !ok {
		return writer.Command{}, errors.New("publish: not a command topic: " + topic)
	}
	target, ch, err := writer.ParseRoute(route)
	if err != nil {
		return writer.Command{}, err
	}
	return writer.Command{Target: target, Channel: ch, Value: payloadValue(payload)}, nil
}

// payloadValue decodes a JSON scalar if possible, else keeps the raw text.
func payloadValue(payload []byte) any {
	var v any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&v); err == nil {
		return v
	}
	return strings.TrimSpace(string(payload))
}
