// Package config defines the CLI option struct populated by cmd/batsim's
// flag parsing: flag.StringVar bindings plus a custom usage().
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/oar-team/batsim-sub001/internal/clog"
)

// Config holds every option the batsim command line accepts.
type Config struct {
	PlatformFile string
	WorkloadFile string

	SocketPath   string
	MasterHost   string
	ExportPrefix string
	EnergyPlugin bool
	Verbosity    clog.Level
	Quiet        bool
}

const defaultSocketPath = "/tmp/batsim.sock"

// Parse parses args (normally os.Args[1:]) into a Config, matching
// "SIMULATOR [options] PLATFORM_FILE WORKLOAD_FILE".
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("batsim", flag.ContinueOnError)
	fs.Usage = func() { usage(fs) }

	cfg := &Config{}
	var verbosity string

	fs.StringVar(&cfg.SocketPath, "socket", defaultSocketPath, "path of the EDC's unix domain socket")
	fs.StringVar(&cfg.MasterHost, "master-host", "master_host", "name of the platform host reserved for simulator processes")
	fs.StringVar(&cfg.ExportPrefix, "export", "out", "prefix for trace/CSV output files")
	fs.BoolVar(&cfg.EnergyPlugin, "energy-plugin", false, "enable energy accounting")
	fs.StringVar(&verbosity, "verbosity", "information", "one of quiet, network-only, information, debug")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "equivalent to --verbosity quiet")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Quiet {
		cfg.Verbosity = clog.Quiet
	} else {
		level, err := parseVerbosity(verbosity)
		if err != nil {
			return nil, err
		}
		cfg.Verbosity = level
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return nil, fmt.Errorf("config: expected PLATFORM_FILE and WORKLOAD_FILE, got %d positional arguments", fs.NArg())
	}
	cfg.PlatformFile = fs.Arg(0)
	cfg.WorkloadFile = fs.Arg(1)

	return cfg, nil
}

func parseVerbosity(s string) (clog.Level, error) {
	switch s {
	case "quiet":
		return clog.Quiet, nil
	case "network-only":
		return clog.Network, nil
	case "information":
		return clog.Information, nil
	case "debug":
		return clog.Debug, nil
	default:
		return 0, fmt.Errorf("config: unknown verbosity %q", s)
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: batsim [options] PLATFORM_FILE WORKLOAD_FILE\n\nOptions:\n")
	fs.PrintDefaults()
}
