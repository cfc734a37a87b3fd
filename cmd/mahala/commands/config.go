package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mahalanet/mahala/src/config"
)

// NewConfigCmd produces a ConfigCmd which writes a mahala.toml file holding
// the defaults, overridden by any flag passed on the command line.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a configuration file in the data directory",
		RunE:  writeConfig,
	}

	AddRunFlags(cmd)

	return cmd
}

func writeConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	if err := os.MkdirAll(_config.DataDir, 0700); err != nil {
		return err
	}

	path := filepath.Join(_config.DataDir, config.DefaultConfigName+".toml")

	if err := viper.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("Writing config: %s", err)
	}

	fmt.Printf("Your configuration has been saved to: %s\n", path)

	return nil
}
