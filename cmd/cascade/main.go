// Command cascade runs the Cascade information-reconciliation protocol
// end to end over a synthetic key: it generates a random correct key,
// manufactures a noisy copy of it, and reconciles the two either
// in-process or against a hosted parity oracle.
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/jaskrrish/go-cascade/internal/cascade"
	"github.com/jaskrrish/go-cascade/internal/oraclesvc"
)

type cliOptions struct {
	nrKeyBits  int
	ber        float64
	iterations uint32
	seed       int64
	oracleAddr string
	runID      string
	showKeys   bool
}

func main() {
	opts, exitCode := parseFlags(os.Args[1:])
	if exitCode >= 0 {
		os.Exit(exitCode)
	}

	if err := run(opts); err != nil {
		log.Fatalf("cascade: %v", err)
	}
}

func parseFlags(args []string) (cliOptions, int) {
	fs := flag.NewFlagSet("cascade", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: cascade [flags]")
		fs.PrintDefaults()
	}

	var opts cliOptions
	fs.IntVar(&opts.nrKeyBits, "bits", 10000, "length of the synthetic key, in bits")
	fs.Float64Var(&opts.ber, "ber", 0.02, "estimated/actual bit error rate injected into the noisy copy")
	fs.Uint32Var(&opts.iterations, "iterations", 4, "number of cascade iterations to run")
	fs.Int64Var(&opts.seed, "seed", 1, "RNG seed for key generation, noise injection and shuffling")
	fs.StringVar(&opts.oracleAddr, "oracle", "", "base URL of a hosted parity oracle (e.g. http://localhost:8090); empty runs in-process")
	fs.StringVar(&opts.runID, "run-id", "", "run ID printed by cascade-server on startup; required when --oracle is set")
	fs.BoolVar(&opts.showKeys, "show-keys", false, "print the full correct/noisy key strings before reconciling")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return opts, 0
		}
		return opts, 2
	}
	return opts, -1
}

func run(opts cliOptions) error {
	rng := rand.New(rand.NewSource(opts.seed))

	fmt.Println("=== Cascade information reconciliation ===")
	fmt.Printf("key length:  %d bits\n", opts.nrKeyBits)
	fmt.Printf("target BER:  %.4f\n", opts.ber)
	fmt.Printf("iterations:  %d\n", opts.iterations)

	correct := randomBitKey(opts.nrKeyBits, rng)
	correct.SetEstimatedBER(opts.ber)

	noisy := correct.Clone()
	flipped := noisy.ApplyNoise(rng)
	fmt.Printf("injected %d bit errors\n\n", len(flipped))

	if opts.showKeys {
		fmt.Printf("correct: %s\n", correct.String())
		fmt.Printf("noisy:   %s\n\n", noisy.String())
	}

	schedule := cascade.NewOriginalSchedule(cascade.ScheduleConfig{NrCascadeIterationsValue: opts.iterations})

	var oracle cascade.ParityOracle
	var remote *oraclesvc.RemoteOracle
	var comparisonKey *cascade.BitKey
	if opts.oracleAddr != "" {
		if opts.runID == "" {
			return fmt.Errorf("--run-id is required when --oracle is set")
		}
		runID, err := uuid.Parse(opts.runID)
		if err != nil {
			return fmt.Errorf("--run-id: %w", err)
		}
		fmt.Printf("using hosted oracle at %s (run %s)\n", opts.oracleAddr, runID)
		remote = oraclesvc.NewRemoteOracle(opts.oracleAddr, runID)
		oracle = remote
		// comparisonKey stays nil: the CLI never sees Alice's key in
		// hosted mode, same as a real deployment.
	} else {
		fmt.Println("using in-process simulator oracle")
		oracle = cascade.NewSimulatorOracle()
		comparisonKey = correct
	}

	reconciler := cascade.NewReconciler(comparisonKey, noisy, oracle, schedule)
	reconciler.SetSeed(uint64(opts.seed))

	summary, runErr := reconciler.Run()
	if remote != nil {
		if runErr != nil {
			if reportErr := remote.ReportFailure(runErr); reportErr != nil {
				log.Printf("cascade: failed to report failure to oracle: %v", reportErr)
			}
		} else if reportErr := remote.ReportCompletion(summary); reportErr != nil {
			log.Printf("cascade: failed to report completion to oracle: %v", reportErr)
		}
	}
	if runErr != nil {
		return fmt.Errorf("reconciliation: %w", runErr)
	}

	printSummary(summary)

	if summary.HasErrorCounts && !summary.Complete() {
		return cascade.ErrReconciliationIncomplete
	}
	return nil
}

func randomBitKey(nrBits int, rng *rand.Rand) *cascade.BitKey {
	var b strings.Builder
	b.Grow(nrBits)
	for i := 0; i < nrBits; i++ {
		if rng.Intn(2) == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	key, _ := cascade.FromBitString(b.String())
	return key
}

func printSummary(summary cascade.Summary) {
	fmt.Println("--- reconciliation summary ---")
	for _, it := range summary.Iterations {
		fmt.Printf("iteration %d: block size %d, %d top blocks, %d corrected (+%d via cascade), %d oracle calls, %v\n",
			it.IterationNr, it.BlockSize, it.NrTopBlocks, it.CorrectedBits, it.CascadeCorrected, it.OracleCalls, it.Duration)
	}
	fmt.Printf("oracle calls: %d\n", summary.OracleCalls)
	fmt.Printf("wall time: %v\n", summary.Duration)
	if summary.HasErrorCounts {
		fmt.Printf("errors: %d -> %d\n", summary.InitialErrors, summary.FinalErrors)
		if summary.Complete() {
			fmt.Println("result: keys fully reconciled")
		} else {
			fmt.Println("result: residual errors remain")
		}
	} else {
		fmt.Println("errors: unknown (hosted oracle never discloses the correct key)")
	}
}
