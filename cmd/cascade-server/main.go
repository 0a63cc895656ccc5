// Command cascade-server hosts a cascade parity oracle over HTTP,
// backed by a randomly generated correct key, so a separate cascade CLI
// process can reconcile a noisy copy of it without ever holding the key
// itself.
package main

import (
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/jaskrrish/go-cascade/internal/cascade"
	"github.com/jaskrrish/go-cascade/internal/oraclesvc"
	"github.com/jaskrrish/go-cascade/internal/runregistry"
)

// runTTL is the registry's expiry for the run this server hosts, counted
// from when the run is created; after it, CleanupExpired may reap the
// run. The registry lives in memory for this process only.
const runTTL = 24 * time.Hour

func main() {
	var (
		addr       string
		nrKeyBits  int
		seed       int64
		iterations uint32
	)

	fs := flag.NewFlagSet("cascade-server", flag.ContinueOnError)
	fs.StringVar(&addr, "addr", ":8090", "address to listen on")
	fs.IntVar(&nrKeyBits, "bits", 10000, "length of the hosted correct key, in bits")
	fs.Int64Var(&seed, "seed", 1, "RNG seed for key generation and shuffling")
	fs.Uint32Var(&iterations, "iterations", 4, "number of cascade iterations to pre-register shuffles for")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	rng := rand.New(rand.NewSource(seed))
	correct := randomBitKey(nrKeyBits, rng)

	registry := runregistry.NewRegistry(runTTL)
	srv := oraclesvc.NewServer(correct, registry)
	for k := uint32(1); k <= iterations; k++ {
		var shuffle *cascade.Shuffle
		if k == 1 {
			shuffle = cascade.NewIdentityShuffle(correct.NrBits())
		} else {
			shuffle = cascade.NewShuffleFromSeed(k, correct.NrBits(), uint64(seed))
		}
		srv.RegisterShuffle(k, shuffle)
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("cascade parity oracle starting on %s (key length %d bits, seed %d)", addr, nrKeyBits, seed)
	log.Printf("run id: %s (pass to cascade via --oracle and --run-id)", srv.RunID())
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}

func randomBitKey(nrBits int, rng *rand.Rand) *cascade.BitKey {
	var b strings.Builder
	b.Grow(nrBits)
	for i := 0; i < nrBits; i++ {
		b.WriteString(strconv.Itoa(rng.Intn(2)))
	}
	key, _ := cascade.FromBitString(b.String())
	key.SetEstimatedBER(0.02)
	return key
}
