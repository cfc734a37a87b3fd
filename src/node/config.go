package node

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/mahalanet/mahala/src/common"
)

// Config contains the settings of the reactive part of a node.
type Config struct {
	// RegisterPeers makes every peer that handshakes with us a validator.
	RegisterPeers bool
	Logger        *logrus.Logger
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Logger: logger,
	}
}

// TestConfig returns a config with a logger that writes through t.Log.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t, logrus.DebugLevel)
	return config
}
