package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/mahalanet/mahala/src/common"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigName is the name, without extension, of the configuration
	// file looked up in the data directory.
	DefaultConfigName = "mahala"
)

// Default configuration values.
const (
	DefaultLogLevel             = "debug"
	DefaultBindAddr             = "127.0.0.1:8333"
	DefaultServiceAddr          = "127.0.0.1:8000"
	DefaultTCPTimeout           = 1000 * time.Millisecond
	DefaultDialAttempts         = 1
	DefaultInboxSize            = 64
	DefaultMinQuorum            = 3
	DefaultDailyAmount          = "10.0"
	DefaultDistributionInterval = 24 * time.Hour
	DefaultStore                = false
	DefaultRegisterPeers        = false
	DefaultNoService            = false
)

// Config contains all the configuration properties of a mahala node.
type Config struct {
	// NodeID is the id this node announces in its envelopes and registers as
	// a validator. When empty it is derived from the digest of the public key.
	NodeID string `mapstructure:"node-id"`

	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of the log output.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node accepts connections
	// from other nodes.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// Seeds are the addresses dialled on startup, in addition to those found
	// in peers.json.
	Seeds []string `mapstructure:"seeds"`

	// NoService disables the HTTP status service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP status service.
	ServiceAddr string `mapstructure:"service-listen"`

	// TCPTimeout bounds outbound dials and writes.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// DialAttempts is the number of times each seed is dialled on startup.
	DialAttempts uint `mapstructure:"dial-attempts"`

	// InboxSize is the number of received envelopes buffered per connection.
	InboxSize int `mapstructure:"inbox-size"`

	// MinQuorum is the minimum number of validators required by any
	// selection.
	MinQuorum int `mapstructure:"min-quorum"`

	// DailyAmount is the amount credited to every personal account each day.
	DailyAmount string `mapstructure:"daily-amount"`

	// DistributionInterval is the period of the distribution loop.
	DistributionInterval time.Duration `mapstructure:"distribution-interval"`

	// Store activates persistent storage of the ledger.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// RegisterPeers makes the node register every peer that handshakes with
	// it as a validator.
	RegisterPeers bool `mapstructure:"register-peers"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:              DefaultDataDir(),
		LogLevel:             DefaultLogLevel,
		BindAddr:             DefaultBindAddr,
		ServiceAddr:          DefaultServiceAddr,
		NoService:            DefaultNoService,
		TCPTimeout:           DefaultTCPTimeout,
		DialAttempts:         DefaultDialAttempts,
		InboxSize:            DefaultInboxSize,
		MinQuorum:            DefaultMinQuorum,
		DailyAmount:          DefaultDailyAmount,
		DistributionInterval: DefaultDistributionInterval,
		Store:                DefaultStore,
		DatabaseDir:          DefaultDatabaseDir(),
		RegisterPeers:        DefaultRegisterPeers,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.BindAddr = "127.0.0.1:0"
	config.NoService = true
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "mahala". When
// LogFile is set, every entry is also written to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(fileHook(c.LogFile))
		}
	}
	return c.logger.WithField("prefix", "mahala")
}

func fileHook(path string) logrus.Hook {
	pathMap := lfshook.PathMap{}
	for _, level := range logrus.AllLevels {
		pathMap[level] = path
	}

	return lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	)
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Mahala")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Mahala")
		} else {
			return filepath.Join(home, ".mahala")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
