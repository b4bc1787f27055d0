// Package interpreter follows the interpreter API websocket and hands every
// datapoint message to a callback, reconnecting with exponential backoff.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/NotCoffee418/teleinfo/pkg/types"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var ErrMaxRetries = errors.New("interpreter api unreachable")

type Listener struct {
	URL url.URL

	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration

	// Messages arrive once per poll interval, so this must exceed the
	// longest interval. Pongs also extend the deadline.
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func NewListener(host string, tlsEnabled bool) *Listener {
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	return &Listener{
		URL:            url.URL{Scheme: scheme, Host: host, Path: "/ws"},
		MaxRetries:     10,
		BaseRetryDelay: 2 * time.Second,
		MaxRetryDelay:  60 * time.Second,
		ReadTimeout:    90 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// StartListener runs a default listener for host until ctx is done.
func StartListener(ctx context.Context, host string, tlsEnabled bool, handle func(msg *types.DatapointMessage)) error {
	return NewListener(host, tlsEnabled).Run(ctx, handle)
}

// Run returns nil once ctx is done, or ErrMaxRetries when the API stays
// unreachable.
func (l *Listener) Run(ctx context.Context, handle func(msg *types.DatapointMessage)) error {
	retryCount := 0

	for {
		if ctx.Err() != nil {
			log.Info("Shutting down listener")
			return nil
		}

		if retryCount > 0 {
			// Exponential backoff
			retryDelay := time.Duration(1<<(retryCount-1)) * l.BaseRetryDelay
			if retryDelay > l.MaxRetryDelay {
				retryDelay = l.MaxRetryDelay
			}
			log.Printf("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, l.MaxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
		}

		log.Printf("Connecting to %s", l.URL.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, l.URL.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("Connection failed: %v", err)
			retryCount++
			if retryCount >= l.MaxRetries {
				return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, retryCount, err)
			}
			continue
		}

		log.Info("Connected! Accepting datapoints.")
		retryCount = 0

		connectionBroken := l.handleConnection(ctx, c, handle)
		c.Close()

		if !connectionBroken {
			return nil
		}
		log.Warn("Connection lost, will retry...")
		retryCount = 1
	}
}

// Reports whether the connection broke, as opposed to a requested shutdown.
func (l *Listener) handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	handle func(msg *types.DatapointMessage),
) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(l.ReadTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(l.ReadTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				} else {
					log.Printf("Connection closed: %v", err)
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(l.ReadTimeout))

			if messageType != websocket.TextMessage {
				log.Printf("Received unexpected message type: %d", messageType)
				continue
			}
			if msg := types.DatapointMessageFromJsonBytes(message); msg != nil {
				handle(msg)
			} else {
				log.Printf("Failed to parse datapoint: %s", string(message))
			}
		}
	}()

	ticker := time.NewTicker(l.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := c.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Printf("Failed to send ping: %v", err)
			}
		case <-done:
			return true
		case <-ctx.Done():
			log.Info("Closing connection...")
			err := c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			if err != nil {
				log.Println("Error sending close message:", err)
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
