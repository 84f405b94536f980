// Command lurk evaluates, proves and verifies Lurk programs and manages
// commitments.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"lurk-zk/internal/config"
	"lurk-zk/pkg/eval"
	"lurk-zk/pkg/prover"
)

type command struct {
	name  string
	usage string
	run   func(env *cliEnv, args []string) error
}

var commands = []command{
	{"eval", "eval [-e expr | file]", runEval},
	{"prove", "prove [-e expr | file] -o out.proof", runProve},
	{"verify", "verify proof-file", runVerify},
	{"commit", "commit [-e expr | file] [-secret hex] -o out.comm", runCommit},
	{"open", "open [-prove] comm-file", runOpen},
	{"seal", "seal -r age-recipient... -o out.age comm-file", runSeal},
	{"unseal", "unseal -i identity-file -o out.comm sealed-file", runUnseal},
	{"timelock", "timelock -in duration -o out.capsule comm-file", runTimelock},
	{"unlock", "unlock -o out.comm capsule-file", runUnlock},
	{"chain", "chain -callable expr -init expr [-o history] args...", runChain},
}

// cliEnv carries what every command needs.
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lurk [-config file] [-metrics-file path] <command> [args]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  lurk %s\n", c.usage)
	}
}

func main() {
	configPath := flag.String("config", "", "path to TOML config")
	metricsFile := flag.String("metrics-file", "", "write metrics in text format on exit")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(eval.Collectors()...)
	reg.MustRegister(prover.Collectors()...)

	name, args := flag.Arg(0), flag.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		usage()
		os.Exit(2)
	}

	runErr := cmd.run(&cliEnv{cfg: cfg, logger: logger}, args)
	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			logger.Error("writing metrics", zap.String("path", *metricsFile), zap.Error(err))
		}
	}
	if runErr != nil {
		logger.Error("command failed", zap.String("command", name), zap.Error(runErr))
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
