// Command lazysmp-uci is the UCI-facing binary wrapping the search core:
// it auto-loads an NNUE weight file from a couple of conventional
// locations (falling back to the material evaluator when none is found)
// and then hands stdin/stdout to the UCI command loop.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/hailam/lazysmp-chess/internal/uci"
)

// defaultWeightsName is the conventional NNUE weight file name this binary
// probes for.
const defaultWeightsName = "weights.nnue"

func main() {
	eng := uci.New(os.Stdout)

	if path, ok := findWeights(); ok {
		f, err := os.Open(path)
		if err != nil {
			log.Printf("NNUE: could not open %s: %v (using material evaluator)", path, err)
		} else {
			eng.LoadWeights(f)
			f.Close()
		}
	}

	eng.Run(os.Stdin)
}

// findWeights looks in the current directory and next to the executable
// for a weight file, returning false if neither has one.
func findWeights() (string, bool) {
	candidates := []string{defaultWeightsName}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), defaultWeightsName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, true
		}
	}
	return "", false
}
