package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/dacapoday/pst"
	"github.com/dacapoday/pst/internal/logger"
	"github.com/dacapoday/pst/ltp"
	"github.com/dacapoday/pst/store"
)

// ExitOnErr prints err via cmd and exits with code 1. Does nothing if err
// is nil.
func ExitOnErr(cmd *cobra.Command, err error) {
	if err != nil {
		cmd.PrintErrln(err)
		os.Exit(1)
	}
}

// Errf returns formatted error in errFmt format if err is not nil.
func Errf(errFmt string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(errFmt, err)
}

// openStore opens the configured file. The registry collects the read path
// metrics when they are enabled.
func openStore(cmd *cobra.Command) (*store.DB, *prometheus.Registry) {
	path := cfg.GetString(cfgFile)
	if path == "" {
		ExitOnErr(cmd, fmt.Errorf("no PST file, use --%s", cfgFile))
	}
	log, err := logger.New(cfg.GetString(cfgLogLevel))
	ExitOnErr(cmd, err)
	codepage, err := codepage(cfg.GetString(cfgCodepage))
	ExitOnErr(cmd, err)

	reg := prometheus.NewRegistry()
	db, err := store.Open(path,
		store.WithLogger(log),
		store.WithPageCacheSize(cfg.GetInt(cfgCache)),
		store.WithMetrics(reg),
		store.WithCodepage(codepage),
	)
	ExitOnErr(cmd, Errf("can't open PST file: %w", err))
	return db, reg
}

func codepage(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown code page %q: %w", name, err)
	}
	return enc, nil
}

// printMetrics prints the counters of reg when metrics are enabled.
func printMetrics(cmd *cobra.Command, reg *prometheus.Registry) {
	if !cfg.GetBool(cfgMetrics) {
		return
	}
	families, err := reg.Gather()
	ExitOnErr(cmd, err)
	cmd.Println("Metrics:")
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var labels []string
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			name := family.GetName()
			if len(labels) != 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			cmd.Printf("\t%s: %v\n", name, metric.GetCounter().GetValue())
		}
	}
}

func parseNodeID(s string) (pst.NodeID, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return pst.NodeID(v), nil
}

// tagName returns the tag, with the named property it stands for when the
// map knows it.
func tagName(db *store.DB, tag ltp.Tag) string {
	if !tag.IsNamed() {
		return tag.String()
	}
	m, err := db.NamedProperties()
	if err != nil {
		return tag.String()
	}
	prop, err := m.ReverseResolve(tag.ID())
	if err != nil {
		return tag.String()
	}
	return fmt.Sprintf("%v %v/%v", tag, prop.GUID, prop.Name)
}

// display truncates s to width runes.
func display(s string, width int) string {
	runes := []rune(strings.Map(func(r rune) rune {
		if r < ' ' {
			return '.'
		}
		return r
	}, s))
	if width > 3 && len(runes) > width {
		return string(runes[:width-3]) + "..."
	}
	return string(runes)
}
