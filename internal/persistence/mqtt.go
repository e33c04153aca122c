package persistence

import (
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/blockhaven/ticketd/internal/config"
)

// ErrNoBroker signals that no broker URL was configured; the event bridge is
// optional and callers run without it.
var ErrNoBroker = errors.New("mqtt broker not configured")

// ConnectMQTT dials the notification broker.
func ConnectMQTT(cfg config.NotifyConfig, logger *zap.Logger) (mqtt.Client, error) {
	if cfg.MQTTBrokerURL == "" {
		return nil, ErrNoBroker
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(cfg.MQTTClientID).
		SetConnectTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logger.Info("connected to mqtt broker", zap.String("broker", cfg.MQTTBrokerURL))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}
