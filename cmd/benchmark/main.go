// Benchmark tool for load-testing Kestrel with synthetic auction data.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 10000
//
// This tool:
//  1. Generates synthetic tax-deed properties across several counties
//  2. Creates a set of alert rules through the API
//  3. Sends each property to Kestrel for ingestion and matching
//  4. Reports throughput, latency percentiles, and alert rates
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// PropertyRequest mirrors the Kestrel ingest API request format.
type PropertyRequest struct {
	CountyID     string   `json:"countyId"`
	CountyName   string   `json:"countyName,omitempty"`
	ParcelNumber string   `json:"parcelNumber,omitempty"`
	PropertyType *string  `json:"propertyType,omitempty"`
	TotalDue     *float64 `json:"totalDue,omitempty"`
	LotSizeAcres *float64 `json:"lotSizeAcres,omitempty"`
	TotalScore   *float64 `json:"totalScore,omitempty"`
}

// IngestResponse mirrors the Kestrel ingest API response format.
type IngestResponse struct {
	PropertyID string `json:"propertyId"`
	RulesTried int    `json:"rulesTried"`
	Alerts     []struct {
		ID         string  `json:"id"`
		RuleID     string  `json:"ruleId"`
		MatchScore float64 `json:"matchScore"`
	} `json:"alerts"`
}

// RuleRequest mirrors the rule creation API request format.
type RuleRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Criteria  map[string]any `json:"criteria"`
	Frequency string         `json:"frequency"`
	Enabled   bool           `json:"enabled"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalAlerts    int64
	TotalErrors    int64

	mu        sync.Mutex
	latencies []time.Duration
}

var counties = []struct {
	id   string
	name string
}{
	{"county-blair", "Blair County, PA"},
	{"county-cambria", "Cambria County, PA"},
	{"county-somerset", "Somerset County, PA"},
	{"county-bedford", "Bedford County, PA"},
	{"county-huntingdon", "Huntingdon County, PA"},
}

var propertyTypes = []string{
	"vacant_land",
	"single_family",
	"mobile_home",
	"commercial",
	"multi_family",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	count := flag.Int("count", 10000, "Number of properties to ingest")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	ruleCount := flag.Int("rules", 20, "Number of alert rules to create")
	seed := flag.Int64("seed", 42, "Random seed for property generation")
	verbose := flag.Bool("verbose", false, "Print each property result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        KESTREL BENCHMARK - Synthetic Auction Ingestion        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Properties:  %d\n", *count)
	fmt.Printf("Rules:       %d\n", *ruleCount)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	rng := rand.New(rand.NewSource(*seed))

	fmt.Printf("\nCreating %d alert rules...\n", *ruleCount)
	if err := createRules(*baseURL, *tenantID, *ruleCount, rng); err != nil {
		fmt.Printf("ERROR: Failed to create rules: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Rules created")

	properties := generateProperties(*count, rng)
	fmt.Printf("✓ Generated %d synthetic properties\n", len(properties))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(properties, *baseURL, *tenantID, *workers, *verbose)
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
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// createRules installs a spread of rules: county watchers, budget caps,
// score thresholds, and acreage ranges.
func createRules(baseURL, tenantID string, count int, rng *rand.Rand) error {
	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < count; i++ {
		criteria := map[string]any{}

		switch i % 4 {
		case 0:
			criteria["countyIds"] = []string{counties[rng.Intn(len(counties))].id}
			criteria["maxBid"] = float64(2000 + rng.Intn(18000))
		case 1:
			criteria["scoreThreshold"] = float64(50 + rng.Intn(50))
		case 2:
			criteria["propertyTypes"] = []string{propertyTypes[rng.Intn(len(propertyTypes))]}
			criteria["maxBid"] = float64(5000 + rng.Intn(25000))
		case 3:
			criteria["minAcres"] = float64(rng.Intn(3))
			criteria["maxAcres"] = float64(5 + rng.Intn(45))
		}

		rule := RuleRequest{
			ID:        fmt.Sprintf("bench-rule-%03d", i),
			Name:      fmt.Sprintf("Benchmark rule %d", i),
			Criteria:  criteria,
			Frequency: "immediate",
			Enabled:   true,
		}

		body, _ := json.Marshal(rule)
		req, err := http.NewRequest(http.MethodPost, baseURL+"/rules", bytes.NewBuffer(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", tenantID)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("rule %s: unexpected status %d", rule.ID, resp.StatusCode)
		}
	}

	return nil
}

// generateProperties builds synthetic county auction records. Roughly 10%
// have missing optional fields, mimicking sparse county exports.
func generateProperties(count int, rng *rand.Rand) []PropertyRequest {
	props := make([]PropertyRequest, count)
	for i := range props {
		county := counties[rng.Intn(len(counties))]

		p := PropertyRequest{
			CountyID:     county.id,
			CountyName:   county.name,
			ParcelNumber: fmt.Sprintf("%02d-%04d-%03d", rng.Intn(99), rng.Intn(9999), rng.Intn(999)),
		}

		if rng.Float64() > 0.1 {
			ptype := propertyTypes[rng.Intn(len(propertyTypes))]
			p.PropertyType = &ptype
		}
		if rng.Float64() > 0.1 {
			due := 500 + rng.Float64()*49500
			p.TotalDue = &due
		}
		if rng.Float64() > 0.1 {
			acres := rng.Float64() * 50
			p.LotSizeAcres = &acres
		}
		if rng.Float64() > 0.1 {
			score := rng.Float64() * 125
			p.TotalScore = &score
		}

		props[i] = p
	}
	return props
}

func runBenchmark(properties []PropertyRequest, baseURL, tenantID string, workers int, verbose bool) *Metrics {
	metrics := &Metrics{}
	client := &http.Client{Timeout: 30 * time.Second}

	jobs := make(chan PropertyRequest, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for prop := range jobs {
				processProperty(client, prop, baseURL, tenantID, metrics, verbose)
			}
		}()
	}

	for _, prop := range properties {
		jobs <- prop
	}
	close(jobs)
	wg.Wait()

	return metrics
}

func processProperty(client *http.Client, prop PropertyRequest, baseURL, tenantID string, metrics *Metrics, verbose bool) {
	body, _ := json.Marshal(prop)
	req, err := http.NewRequest(http.MethodPost, baseURL+"/properties", bytes.NewBuffer(body))
	if err != nil {
		atomic.AddInt64(&metrics.TotalErrors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)

	if err != nil {
		atomic.AddInt64(&metrics.TotalErrors, 1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		atomic.AddInt64(&metrics.TotalErrors, 1)
		return
	}

	var result IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		atomic.AddInt64(&metrics.TotalErrors, 1)
		return
	}

	atomic.AddInt64(&metrics.TotalProcessed, 1)
	atomic.AddInt64(&metrics.TotalAlerts, int64(len(result.Alerts)))

	metrics.mu.Lock()
	metrics.latencies = append(metrics.latencies, latency)
	metrics.mu.Unlock()

	if verbose {
		fmt.Printf("  %s %s: %d rules tried, %d alerts, %v\n",
			prop.CountyID, prop.ParcelNumber, result.RulesTried, len(result.Alerts), latency)
	}
}

func printResults(metrics *Metrics, duration time.Duration) {
	processed := atomic.LoadInt64(&metrics.TotalProcessed)
	alertsRaised := atomic.LoadInt64(&metrics.TotalAlerts)
	errors := atomic.LoadInt64(&metrics.TotalErrors)

	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          RESULTS                              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nProcessed:   %d properties in %v\n", processed, duration.Round(time.Millisecond))
	fmt.Printf("Errors:      %d\n", errors)
	fmt.Printf("Alerts:      %d raised\n", alertsRaised)

	if processed > 0 {
		fmt.Printf("Throughput:  %.1f properties/sec\n", float64(processed)/duration.Seconds())
		fmt.Printf("Alert rate:  %.2f alerts/property\n", float64(alertsRaised)/float64(processed))
	}

	metrics.mu.Lock()
	latencies := metrics.latencies
	metrics.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Println("\nLatency:")
		fmt.Printf("  p50:  %v\n", latencies[len(latencies)*50/100].Round(time.Microsecond))
		fmt.Printf("  p90:  %v\n", latencies[len(latencies)*90/100].Round(time.Microsecond))
		fmt.Printf("  p99:  %v\n", latencies[len(latencies)*99/100].Round(time.Microsecond))
		fmt.Printf("  max:  %v\n", latencies[len(latencies)-1].Round(time.Microsecond))
	}
	fmt.Println()
}
