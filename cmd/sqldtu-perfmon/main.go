package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"golang.org/x/term"

	"github.com/signalfx/sqldtu-perfmon/internal/core"
	"github.com/signalfx/sqldtu-perfmon/internal/core/config"
	"github.com/signalfx/sqldtu-perfmon/internal/sampler/interrupt"
)

var (
	// Version of the tool
	Version string

	// BuiltTime of the binary
	BuiltTime string
)

const defaultConfigPath = "sqldtu-perfmon.yaml"

func init() {
	log.SetFormatter(&prefixed.TextFormatter{})
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stdout)
}

// flags is used to store parsed flag values
type flags struct {
	// version is a bool flag for printing the version string
	version bool
	// configPath is a string flag for specifying the yaml config file
	configPath string
	// debug is a bool flag for printing debug level information
	debug bool
}

// getFlags retrieves flags passed at runtime and returns them in a flags struct
func getFlags() *flags {
	flags := &flags{}
	set := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	set.BoolVar(&flags.version, "version", false, "print version")
	set.StringVar(&flags.configPath, "config", defaultConfigPath, "config file path")
	set.BoolVar(&flags.debug, "debug", false, "print debugging output")

	// The set is configured to exit on errors so we don't need to check the
	// return value here.
	set.Parse(os.Args[1:])

	return flags
}

func main() {
	flags := getFlags()

	if flags.debug {
		log.SetLevel(log.DebugLevel)
	}

	if flags.version {
		fmt.Printf("sqldtu-perfmon version %s, built %s\n", Version, BuiltTime)
		os.Exit(0)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	var keyboard *interrupt.Keyboard
	if interactive {
		keyboard = interrupt.NewKeyboard(os.Stdin)
	}
	signals, stopSignals := interrupt.WatchSignals(os.Interrupt, syscall.SIGTERM)

	conf, err := run(flags, keyboard, signals)
	stopSignals()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if shouldWaitForKey(interactive, conf) {
			fmt.Fprintln(os.Stderr, "Press Enter to exit...")
			keyboard.Wait()
		}
		os.Exit(1)
	}

	os.Exit(0)
}

// shouldWaitForKey reports whether a fatal error should be held on screen until
// Enter is pressed.  conf is nil if it could not be loaded.
func shouldWaitForKey(interactive bool, conf *config.Config) bool {
	return interactive && conf.ShouldWaitForKey()
}

// run loads the config and samples.  The config is returned even on error if
// it could be loaded.
func run(flags *flags, keyboard *interrupt.Keyboard, signals *interrupt.Flag) (*config.Config, error) {
	conf, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	src, closeSources, err := core.BuildSources(conf)
	if err != nil {
		return conf, err
	}
	defer closeSources()

	interrupter := interrupt.Any{signals}
	if keyboard != nil {
		interrupter = append(interrupter, keyboard)
	}

	_, err = core.Run(context.Background(), conf, src, os.Stdout, interrupter)
	return conf, err
}
