package main

import (
	"fmt"
	"log"
	"time"

	"github.com/consensys/gnark/constraint"

	"lurk-zk/circuits/claim"
	"lurk-zk/circuits/opening"
)

type target struct {
	name    string
	compile func() (constraint.ConstraintSystem, error)
}

func main() {
	fmt.Println("=== Lurk Circuit Analysis ===")

	targets := []target{
		{"claim", claim.Compile},
		{"opening", opening.Compile},
	}
	for i, tg := range targets {
		fmt.Printf("\n[%d/%d] Compiling %s circuit...\n", i+1, len(targets), tg.name)
		start := time.Now()
		ccs, err := tg.compile()
		if err != nil {
			log.Fatalf("%s compilation failed: %v", tg.name, err)
		}
		constraints := ccs.GetNbConstraints()

		// Rule of thumb: ~10-20ms per 1000 constraints on modern hardware
		estimatedSeconds := float64(constraints) * 0.015 / 1000

		fmt.Printf("  Time: %v\n", time.Since(start))
		fmt.Printf("  Constraints: %d\n", constraints)
		fmt.Printf("  Public inputs: %d\n", ccs.GetNbPublicVariables())
		fmt.Printf("  Est. prove time: ~%.2fs\n", estimatedSeconds)
	}
}
