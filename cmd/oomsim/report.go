package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sarchlab/oomsim/timing/pipeline"
)

func printResultsTable(r pipeline.Results) {
	fmt.Println()
	fmt.Println("=== oomsim Results ===")
	fmt.Printf("Exit code:              %d\n", r.ExitCode)
	fmt.Printf("Cycles:                 %d\n", r.Cycles)
	fmt.Printf("Instructions committed: %d\n", r.InstructionsCommitted)
	fmt.Printf("IPC:                    %.3f\n", r.IPC)
	fmt.Println()
	fmt.Println("--- Branch predictor ---")
	fmt.Printf("Predictions:    %d\n", r.BranchPredictions)
	fmt.Printf("Mispredictions: %d\n", r.BranchMispredictions)
	fmt.Printf("Accuracy:       %.1f%%\n", r.BranchAccuracy*100)
	fmt.Println()
	fmt.Println("--- Caches ---")
	fmt.Printf("I-Cache: %d/%d hits\n", r.ICacheHits, r.ICacheAccesses)
	fmt.Printf("D-Cache: %d/%d hits\n", r.DCacheHits, r.DCacheAccesses)
	if len(r.StallsByCause) > 0 {
		fmt.Println()
		fmt.Println("--- Stalls by cause ---")
		for _, cause := range sortedKeys(r.StallsByCause) {
			fmt.Printf("%-16s %d\n", cause, r.StallsByCause[cause])
		}
	}
	if len(r.FUUtilization) > 0 {
		fmt.Println()
		fmt.Println("--- FU utilization ---")
		for _, class := range sortedFloatKeys(r.FUUtilization) {
			fmt.Printf("%-10s %.1f%%\n", class, r.FUUtilization[class]*100)
		}
	}
}

func printResultsCSV(r pipeline.Results) {
	fmt.Println("cycles,instructions_committed,ipc,branch_predictions,branch_mispredictions,branch_accuracy,icache_accesses,icache_hits,dcache_accesses,dcache_hits,exit_code")
	fmt.Printf("%d,%d,%.3f,%d,%d,%.3f,%d,%d,%d,%d,%d\n",
		r.Cycles, r.InstructionsCommitted, r.IPC,
		r.BranchPredictions, r.BranchMispredictions, r.BranchAccuracy,
		r.ICacheAccesses, r.ICacheHits, r.DCacheAccesses, r.DCacheHits, r.ExitCode)
}

func printResultsJSON(r pipeline.Results) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(r)
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFloatKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
