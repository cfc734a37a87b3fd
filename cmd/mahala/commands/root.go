package commands

import (
	"github.com/spf13/cobra"

	"github.com/mahalanet/mahala/src/config"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for Mahala
var RootCmd = &cobra.Command{
	Use:              "mahala",
	Short:            "mahala node",
	TraverseChildren: true,
}
