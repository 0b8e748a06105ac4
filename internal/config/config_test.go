package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := Load(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.App.HTTPPort, qt.Equals, 8082)
	c.Assert(cfg.Gateway.Mode, qt.Equals, GatewayModeMock)
	c.Assert(cfg.Gateway.MockLinkTag, qt.Equals, "MOCK_PAY")
	c.Assert(cfg.Gateway.MockProviders, qt.DeepEquals, []string{"webpay", "onepay", "mercadopago", "khipu", "flow"})
	c.Assert(cfg.Resolver.AliasPrefixes, qt.DeepEquals, []string{"chile_"})
	c.Assert(cfg.Outbox.PollInterval, qt.Equals, time.Second)
	c.Assert(cfg.Events.Broker, qt.Equals, BrokerKafka)
}

func TestLoadEnvOverrides(t *testing.T) {
	c := qt.New(t)

	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKER_URL", "k1:9092, k2:9092")
	t.Setenv("MOCK_FIXED_PROVIDER", "khipu")

	cfg, err := Load(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.App.HTTPPort, qt.Equals, 9000)
	c.Assert(cfg.Gateway.Timeout, qt.Equals, 3*time.Second)
	c.Assert(cfg.GetKafkaBrokers(), qt.DeepEquals, []string{"k1:9092", "k2:9092"})
	c.Assert(cfg.Gateway.MockFixedProvider, qt.Equals, "khipu")
}

func TestLoadFlagsAndConfigFile(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "payments.env")
	err := os.WriteFile(path, []byte("APP_NAME=from-file\nDEBUG=true\n"), 0o600)
	c.Assert(err, qt.IsNil)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	c.Assert(fs.Parse([]string{"--config", path, "--http-port", "7001"}), qt.IsNil)

	cfg, err := Load(fs)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.App.Name, qt.Equals, "from-file")
	c.Assert(cfg.App.Debug, qt.IsTrue)
	c.Assert(cfg.App.HTTPPort, qt.Equals, 7001)
}

func TestValidateLiveModeNeedsCredentials(t *testing.T) {
	c := qt.New(t)

	t.Setenv("GATEWAY_MODE", "live")
	_, err := Load(nil)
	c.Assert(err, qt.ErrorMatches, `(?s).*live gateway mode needs.*`)

	t.Setenv("STRIPE_API_KEY", "sk_test_123")
	_, err = Load(nil)
	c.Assert(err, qt.IsNil)
}

func TestValidateRejectsUnknownBroker(t *testing.T) {
	c := qt.New(t)

	t.Setenv("EVENTS_BROKER", "nats")
	_, err := Load(nil)
	c.Assert(err, qt.ErrorMatches, `(?s).*EVENTS_BROKER must be.*`)
}

func TestConnectionStrings(t *testing.T) {
	c := qt.New(t)

	cfg := &Config{DB: DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", Name: "payments", SSLMode: "disable"}}
	c.Assert(cfg.GetDBConnectionString(), qt.Equals, "host=db port=5432 user=u password=p@ss dbname=payments sslmode=disable")
	c.Assert(cfg.GetDBMigrationConnectionString(), qt.Equals, "postgres://u:p%40ss@db:5432/payments?sslmode=disable")
}
