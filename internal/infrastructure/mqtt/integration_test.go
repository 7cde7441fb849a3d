//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/prysmalight/prysma-core/internal/infrastructure/config"
)

// These tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	cfg.Namespace = "prysma-it"
	return cfg
}

func TestIntegration_LightTopicRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig("prysma-it-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(integrationConfig("prysma-it-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	topic := sub.Topics().Light("roundtrip", "state")
	received := make(chan string, 1)
	var once sync.Once

	err = sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	want := `{"name":"roundtrip","state":"ON"}`
	if err := pub.Publish(topic, []byte(want), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestIntegration_ConnectTimeoutIsNotFatal(t *testing.T) {
	cfg := integrationConfig("prysma-it-timeout")
	cfg.Broker.Port = 19999
	cfg.Reconnect.ConnectTimeout = 1

	c, err := Connect(cfg)
	if c == nil {
		t.Fatalf("Connect() returned nil client, err = %v", err)
	}
	defer c.Close()

	if c.IsConnected() {
		t.Error("IsConnected() = true with unreachable broker")
	}
}
