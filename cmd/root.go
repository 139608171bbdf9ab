package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/portalmesh/relmeta/internal/config"
)

var (
	cfgFile string
	Cfg     *config.Config
	Version string
)

var RootCmd = &cobra.Command{
	Use:   "relmeta",
	Short: "relmeta - release manifest and rule-index generator",
	Long: `relmeta maintains the machine-readable manifests consumed by the
self-updating client: a per-channel map of downloadable core builds and
the rule-set indices.`,
}

func Execute(version string) error {
	Version = version
	return RootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	// A missing file on the search path is tolerated inside LoadConfig
	// and yields the defaults; an error here means a config file was
	// found but could not be used.
	var err error
	Cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Printf("Fatal: Configuration could not be loaded: %v\n", err)
		os.Exit(1)
	}
}
