// Package mqtt publishes schedule and submission state to an MQTT broker so
// a home-automation integration can mirror it without polling the cloud.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/lmichel/tonectl/core/submit"
	"github.com/lmichel/tonectl/infra/logger"
	"github.com/lmichel/tonectl/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	UseTLS      bool   `json:"use_tls"`
	ClientCert  string `json:"client_cert"`
	ClientKey   string `json:"client_key"`
	CABundle    string `json:"ca_bundle"`
	QoS         byte   `json:"qos"`
	LWTTopic    string `json:"lwt_topic"`
	LWTPayload  string `json:"lwt_payload"`
	LWTRetain   bool   `json:"lwt_retain"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "tonectl"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "tonectl"
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// StatusPublisher pushes submission status and schedule announcements to
// per-entity topics.
type StatusPublisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewStatusPublisher connects to the MQTT broker.
func NewStatusPublisher(cfg Config) (*StatusPublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &StatusPublisher{cli: c, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// PublishStatus publishes the submission status of an entity, retained so a
// late subscriber sees the last terminal state.
func (p *StatusPublisher) PublishStatus(entityID string, st submit.Status) error {
	payload, err := json.Marshal(struct {
		EntityID string `json:"entity_id"`
		submit.Status
		Timestamp int64 `json:"timestamp"`
	}{EntityID: entityID, Status: st, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/status", p.prefix, entityID)
	token := p.cli.Publish(topic, p.qos, true, payload)
	token.Wait()
	return token.Error()
}

// PublishSchedule announces the encoded schedule of an entity.
func (p *StatusPublisher) PublishSchedule(entityID, encoded, program string) error {
	payload, err := json.Marshal(struct {
		EntityID string `json:"entity_id"`
		Program  string `json:"program"`
		Schedule string `json:"schedule"`
	}{EntityID: entityID, Program: program, Schedule: encoded})
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/schedule", p.prefix, entityID)
	token := p.cli.Publish(topic, p.qos, false, payload)
	token.Wait()
	return token.Error()
}

// Run mirrors submission status events from the bus until the channel closes.
func (p *StatusPublisher) Run(events <-chan eventbus.Event) {
	for e := range events {
		ev, ok := e.(submit.StatusEvent)
		if !ok {
			continue
		}
		if err := p.PublishStatus(ev.EntityID, ev.Status); err != nil {
			p.log.Errorf("publish status for %s: %v", ev.EntityID, err)
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *StatusPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
