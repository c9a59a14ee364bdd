package merge

import (
	"flag"

	"github.com/grafana/profdiff/pkg/util"
)

type Config struct {
	// StrictPayloads rejects marker payloads without a type tag instead of
	// passing them through.
	StrictPayloads bool                  `yaml:"strict_payloads"`
	Concurrency    util.ConcurrencyLimit `yaml:"concurrency"`
	// SkipValidation disables the reference checks run on every input
	// thread before merging. Out-of-range references met while merging are
	// still reported.
	SkipValidation bool `yaml:"skip_validation"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&cfg.StrictPayloads, "merge.strict-payloads", false, "Fail on marker payloads without a type tag.")
	f.Var(&cfg.Concurrency, "merge.concurrency", "Maximum number of threads validated and rewritten in parallel. 'auto' uses GOMAXPROCS.")
	f.BoolVar(&cfg.SkipValidation, "merge.skip-validation", false, "Skip validation of input threads.")
}

func (cfg *Config) concurrency() int {
	return cfg.Concurrency.Int()
}
