package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/mediastitch/internal/config"
	"github.com/tanq16/mediastitch/internal/utils"
)

var (
	configPath  string
	connections int
	workers     int
	timeout     time.Duration
	userAgent   string
	proxyURL    string
	headers     []string
	debug       bool
	sinkKind    string
	bucket      string
	partial     bool

	cfg *config.Config
)

var MediastitchVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "mediastitch",
	Short:   "mediastitch downloads web video streams and stitches them into one file",
	Version: MediastitchVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		utils.InitLogger(cfg.Debug)
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./mediastitch.yaml or $HOME/.mediastitch/mediastitch.yaml)")
	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", 4, "Concurrent connections per job (above 8 enables high-thread-mode)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Number of jobs to run in parallel")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Connection timeout (eg. 5s, 10m)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (credentials may be embedded)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Referer: https://site/'); can be specified multiple times")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&sinkKind, "sink", "local", "Where finished files go: local or s3")
	rootCmd.PersistentFlags().StringVar(&bucket, "bucket", "", "S3 bucket for --sink s3")
	rootCmd.PersistentFlags().BoolVar(&partial, "partial", true, "Save downloaded segments as a partial file on interrupt or failure")

	rootCmd.AddCommand(newHLSCmd())
	rootCmd.AddCommand(newDASHCmd())
	rootCmd.AddCommand(newHTTPCmd())
	rootCmd.AddCommand(newAutoCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newPatchDurationCmd())
	rootCmd.AddCommand(newCleanCmd())
}
