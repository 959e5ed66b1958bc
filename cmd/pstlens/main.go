// pstlens inspects PST files: header, node and block BTrees, property and
// table contexts, EntryIDs and named properties.
//
// Usage:
//
//	pstlens header -f mailbox.pst
//	pstlens props -f mailbox.pst 0x122
//	pstlens table -f mailbox.pst 0x12e
//	pstlens browse -f mailbox.pst 0x12e   # interactive
//
// Flags can also be set through PSTLENS_* environment variables or a YAML
// file given with --config.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	cfgFile     = "file"
	cfgLogLevel = "log.level"
	cfgCache    = "cache.pages"
	cfgMetrics  = "metrics"
	cfgCodepage = "codepage"
)

var (
	cfg        = viper.New()
	configPath string
)

var command = &cobra.Command{
	Use:               "pstlens",
	Short:             "PST file lens",
	Long:              `pstlens provides tools to browse the contents of Personal Storage Table (PST) files.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// use stdout as default output for cmd.Print()
	command.SetOut(os.Stdout)

	flags := command.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML config file")
	flags.StringP(cfgFile, "f", "", "PST file")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Int("cache-pages", 1024, "BTree pages kept in memory, 0 disables the cache")
	flags.Bool(cfgMetrics, false, "print read path metrics on exit")
	flags.String(cfgCodepage, "windows-1252", "code page of 8-bit strings")

	_ = cfg.BindPFlag(cfgFile, flags.Lookup(cfgFile))
	_ = cfg.BindPFlag(cfgLogLevel, flags.Lookup("log-level"))
	_ = cfg.BindPFlag(cfgCache, flags.Lookup("cache-pages"))
	_ = cfg.BindPFlag(cfgMetrics, flags.Lookup(cfgMetrics))
	_ = cfg.BindPFlag(cfgCodepage, flags.Lookup(cfgCodepage))

	command.AddCommand(
		headerCMD,
		dlistCMD,
		nodesCMD,
		blocksCMD,
		propsCMD,
		tableCMD,
		resolveCMD,
		namedCMD,
		browseCMD,
		statCMD,
	)
}

func loadConfig(*cobra.Command, []string) error {
	cfg.SetEnvPrefix("PSTLENS")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()
	if configPath == "" {
		return nil
	}
	cfg.SetConfigFile(configPath)
	cfg.SetConfigType("yaml")
	return cfg.ReadInConfig()
}

func main() {
	err := command.Execute()
	if err != nil {
		command.PrintErrln(err)
		os.Exit(1)
	}
}
