// Knxtool inspects and exercises KNXnet/IP installations.
//
// It decodes KNXnet/IP and cEMI frames, converts datapoint values,
// derives and applies KNX IP Secure keys, discovers gateways and talks to
// the bus through tunnelling or routing.
//
// Usage:
//
//	knxtool [command] [flags]
//
// Settings are read from the file given with --config and from KNXIP_*
// environment variables.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/backkem/knxip/pkg/config"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg           *config.Config
	loggerFactory *logging.DefaultLoggerFactory
	log           logging.LeveledLogger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "knxtool",
	Short: "KNXnet/IP inspection and client tool",
	Long: `A command line client for KNXnet/IP.

Decodes frames, converts datapoint values, handles KNX IP Secure keys,
discovers gateways and sends or monitors group telegrams.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
			if err := c.Validate(); err != nil {
				return err
			}
		}
		cfg = c
		loggerFactory = c.Logging.LoggerFactory()
		log = loggerFactory.NewLogger("knxtool")
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (disabled, error, warn, info, debug, trace)")
}

// parseHex decodes hex input, ignoring spaces, colons and a 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func joinArgs(args []string) string {
	return strings.Join(args, "")
}
