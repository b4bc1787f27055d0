// Package mqttbridge mirrors published datapoints to an MQTT broker.
//
// Every datagram goes to <prefix>/<KEY> with its raw value as payload. The
// total energy counter is published to <prefix>/total_energy in Wh and the
// decoder availability to <prefix>/status as online or offline.
package mqttbridge

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/config"
	"github.com/NotCoffee418/teleinfo/pkg/publisher"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	tokenTimeout = 10 * time.Second
)

var ErrNoBroker = errors.New("mqtt broker not configured")

// Client is the part of mqtt.Client the bridge publishes through.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Bridge struct {
	client Client
	prefix string
	qos    byte
	retain bool

	// Source of the status republished on connect.
	pub *publisher.Publisher
}

func New(client Client, cfg config.MQTTConfig) *Bridge {
	return &Bridge{
		client: client,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
	}
}

// Dial connects a bridge for pub to the configured broker. The broker is told
// to publish offline on the status topic if the connection drops, and every
// (re)connect republishes the current availability over it.
func Dial(cfg config.MQTTConfig, pub *publisher.Publisher) (*Bridge, mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, nil, ErrNoBroker
	}

	b := New(nil, cfg)
	b.pub = pub

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(tokenTimeout)
	opts.SetWill(b.Topic("status"), StatusOffline, cfg.QoS, true)
	opts.SetOnConnectHandler(b.HandleConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	b.client = client
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, nil, tok.Error()
	}
	log.Infof("Connected to MQTT %s", cfg.Broker)

	b.Attach(pub)
	return b, client, nil
}

// HandleConnect overwrites the retained last will with the current status.
func (b *Bridge) HandleConnect(mqtt.Client) {
	if b.pub == nil {
		return
	}
	b.PublishStatus(b.pub.Available())
}

// Attach forwards every event, total energy update and availability change of pub.
func (b *Bridge) Attach(pub *publisher.Publisher) {
	if b.pub == nil {
		b.pub = pub
	}
	pub.SubscribeAll(func(ev publisher.Event) error {
		b.publish(b.Topic(ev.Key), ev.Value, b.retain)
		return nil
	})
	pub.Energy().Subscribe(func(wh int64) {
		b.publish(b.Topic("total_energy"), strconv.FormatInt(wh, 10), b.retain)
	})
	pub.OnAvailability(b.PublishStatus)
}

// PublishStatus publishes online or offline, always retained.
func (b *Bridge) PublishStatus(available bool) {
	status := StatusOffline
	if available {
		status = StatusOnline
	}
	b.publish(b.Topic("status"), status, true)
}

func (b *Bridge) Topic(name string) string {
	return topic(b.prefix, name)
}

func topic(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Never waits on the token; the publisher calls this synchronously.
func (b *Bridge) publish(topic, payload string, retain bool) {
	tok := b.client.Publish(topic, b.qos, retain, payload)
	go func() {
		if !tok.WaitTimeout(tokenTimeout) {
			log.WithField("topic", topic).Warn("MQTT publish timed out")
			return
		}
		if err := tok.Error(); err != nil {
			log.WithField("topic", topic).Warnf("MQTT publish failed: %v", err)
		}
	}()
}
