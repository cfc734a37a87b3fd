package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mahalanet/mahala/src/config"
	"github.com/mahalanet/mahala/src/mahala"
)

//NewRunCmd returns the command that starts a Mahala node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMahala,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMahala(cmd *cobra.Command, args []string) error {
	engine := mahala.NewMahala(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return engine.Run(ctx)
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write the log to this file")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")
	cmd.Flags().String("node-id", _config.NodeID, "Node id, derived from the public key when empty")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for mahala node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for mahala node")
	cmd.Flags().StringSlice("seeds", _config.Seeds, "Comma-separated IP:Port of nodes to connect to on startup")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Uint("dial-attempts", _config.DialAttempts, "Number of times each seed is dialled")
	cmd.Flags().Int("inbox-size", _config.InboxSize, "Number of received messages buffered per connection")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")

	// Consensus and distribution
	cmd.Flags().Int("min-quorum", _config.MinQuorum, "Minimum number of validators")
	cmd.Flags().Bool("register-peers", _config.RegisterPeers, "Register connected peers as validators")
	cmd.Flags().String("daily-amount", _config.DailyAmount, "Amount credited to every personal account each day")
	cmd.Flags().Duration("distribution-interval", _config.DistributionInterval, "Time between distribution checks")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"mahala.DataDir":              _config.DataDir,
		"mahala.NodeID":               _config.NodeID,
		"mahala.BindAddr":             _config.BindAddr,
		"mahala.AdvertiseAddr":        _config.AdvertiseAddr,
		"mahala.Seeds":                _config.Seeds,
		"mahala.ServiceAddr":          _config.ServiceAddr,
		"mahala.NoService":            _config.NoService,
		"mahala.Store":                _config.Store,
		"mahala.LogLevel":             _config.LogLevel,
		"mahala.Moniker":              _config.Moniker,
		"mahala.TCPTimeout":           _config.TCPTimeout,
		"mahala.DialAttempts":         _config.DialAttempts,
		"mahala.InboxSize":            _config.InboxSize,
		"mahala.MinQuorum":            _config.MinQuorum,
		"mahala.RegisterPeers":        _config.RegisterPeers,
		"mahala.DailyAmount":          _config.DailyAmount,
		"mahala.DistributionInterval": _config.DistributionInterval,
	}

	if _config.Store {
		logFields["mahala.DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/mahala.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName) // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir)          // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
