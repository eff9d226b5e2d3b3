// Benchmark tool for testing Loreweave against a labeled transcript.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/transcript.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a game transcript CSV (player input, AI response, expected-lore label)
//   2. Sends each turn to Loreweave for evaluation
//   3. Compares Loreweave's verdict (LORE/NONE) with the expected labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns: playerInput, aiResponse, expectLore (1 = a rule
// should activate on this turn). Extra columns are ignored.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// TranscriptTurn represents a labeled row from the transcript.
type TranscriptTurn struct {
	PlayerInput string
	AIResponse  string
	ExpectLore  bool
}

// EvaluateRequest is the Loreweave API request format.
type EvaluateRequest struct {
	PlayerInput string `json:"playerInput"`
	AIResponse  string `json:"aiResponse,omitempty"`
	TokenBudget int    `json:"tokenBudget,omitempty"`
}

// EvaluateResponse is the Loreweave API response format.
type EvaluateResponse struct {
	EvaluationID string `json:"evaluationId"`
	Status       string `json:"status"` // "LORE" or "NONE"
	TotalTokens  int    `json:"totalTokens"`
	PromptBlock  string `json:"promptBlock"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Expected lore, got LORE
	FalsePositives int64 // No lore expected, got LORE
	TrueNegatives  int64 // No lore expected, got NONE
	FalseNegatives int64 // Expected lore, got NONE (missed activation!)

	TotalProcessed int64
	TotalExpected  int64
	TotalQuiet     int64
	TotalErrors    int64

	TotalTokens      int64
	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to transcript CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Loreweave base URL")
	campaignID := flag.String("campaign", "benchmark-test", "Campaign ID for requests")
	limit := flag.Int("limit", 10000, "Maximum turns to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	budget := flag.Int("budget", 0, "Token budget override (0 = server default)")
	verbose := flag.Bool("verbose", false, "Print each turn result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/transcript.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         LOREWEAVE BENCHMARK - Transcript Activation           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:      %s\n", *csvPath)
	fmt.Printf("Loreweave URL: %s\n", *baseURL)
	fmt.Printf("Campaign ID:   %s\n", *campaignID)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Limit:         %d\n", *limit)
	fmt.Println()

	// Check Loreweave is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Loreweave not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Loreweave is running:")
		fmt.Println("  cd loreweave && go run cmd/loreweave/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Loreweave is healthy")

	// Read transcript data
	fmt.Printf("\nReading transcript from %s...\n", *csvPath)
	turns, err := readTranscriptCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d turns\n", len(turns))

	expectCount := 0
	for _, turn := range turns {
		if turn.ExpectLore {
			expectCount++
		}
	}
	fmt.Printf("  - Expect lore: %d (%.2f%%)\n", expectCount, 100*float64(expectCount)/float64(len(turns)))
	fmt.Printf("  - Quiet turns: %d (%.2f%%)\n", len(turns)-expectCount, 100*float64(len(turns)-expectCount)/float64(len(turns)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(turns, *baseURL, *campaignID, *workers, *budget, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readTranscriptCSV(path string, limit int) ([]TranscriptTurn, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	playerCol, ok := colIndex["playerinput"]
	if !ok {
		return nil, fmt.Errorf("missing playerInput column")
	}
	aiCol, hasAI := colIndex["airesponse"]
	labelCol, hasLabel := colIndex["expectlore"]

	var turns []TranscriptTurn
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		turn := TranscriptTurn{
			PlayerInput: record[playerCol],
		}
		if hasAI && aiCol < len(record) {
			turn.AIResponse = record[aiCol]
		}
		if hasLabel && labelCol < len(record) {
			turn.ExpectLore = record[labelCol] == "1"
		}

		turns = append(turns, turn)

		if limit > 0 && len(turns) >= limit {
			break
		}
	}

	return turns, nil
}

func runBenchmark(turns []TranscriptTurn, baseURL, campaignID string, numWorkers, budget int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan TranscriptTurn, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for turn := range work {
				start := time.Now()
				result, err := evaluateTurn(client, baseURL, campaignID, turn, budget)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %.30s -> %v\n", turn.PlayerInput, err)
					}
					continue
				}

				if turn.ExpectLore {
					atomic.AddInt64(&metrics.TotalExpected, 1)
				} else {
					atomic.AddInt64(&metrics.TotalQuiet, 1)
				}
				atomic.AddInt64(&metrics.TotalTokens, int64(result.TotalTokens))

				predicted := result.Status == "LORE"
				actual := turn.ExpectLore

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					input := turn.PlayerInput
					if len(input) > 40 {
						input = input[:40]
					}
					fmt.Printf("%s %-40s | Expect: %-5v | Loreweave: %-4s | Tokens: %d\n",
						status,
						input,
						turn.ExpectLore,
						result.Status,
						result.TotalTokens,
					)
				}
			}
		}()
	}

	for _, turn := range turns {
		work <- turn
	}
	close(work)

	wg.Wait()

	return metrics
}

func evaluateTurn(client *http.Client, baseURL, campaignID string, turn TranscriptTurn, budget int) (*EvaluateResponse, error) {
	req := EvaluateRequest{
		PlayerInput: turn.PlayerInput,
		AIResponse:  turn.AIResponse,
		TokenBudget: budget,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Campaign-ID", campaignID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 TRANSCRIPT STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Expected Lore:    %d\n", m.TotalExpected)
	fmt.Printf("   Quiet Turns:      %d\n", m.TotalQuiet)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    LORE        NONE")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  L  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           Q  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 ACTIVATION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of injections, how many were wanted)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of wanted lore, how much was injected)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct decisions)\n", accuracy)

	fmt.Printf("\n🔍 ACTIVATION ANALYSIS\n")
	if m.TotalExpected > 0 {
		hitRate := float64(m.TruePositives) / float64(m.TotalExpected) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalExpected) * 100
		fmt.Printf("   Lore Injected:     %d / %d (%.2f%%)\n", m.TruePositives, m.TotalExpected, hitRate)
		fmt.Printf("   Lore Missed:       %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalExpected, missRate)
	}
	if m.TotalQuiet > 0 {
		noiseRate := float64(m.FalsePositives) / float64(m.TotalQuiet) * 100
		fmt.Printf("   Spurious Lore:     %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalQuiet, noiseRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		avgTokens := float64(m.TotalTokens) / float64(m.TotalProcessed)
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f turns/sec\n", tps)
		fmt.Printf("   Avg Lore Tokens:  %.1f / turn\n", avgTokens)
	}

	fmt.Println()
}
