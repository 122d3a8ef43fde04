// Benchmark tool for load-testing Magpie's purchase ledger.
//
// Usage:
//
//	go run ./cmd/benchmark -customers 50 -purchases 5000 -url http://localhost:8080
//	go run ./cmd/benchmark -csv /path/to/purchases.csv
//
// This tool:
//  1. Enrolls the customers it needs (existing ones are reused)
//  2. Sends purchases concurrently to POST /purchases
//  3. Reconciles every customer afterwards and reports any cache drift
//  4. Prints latency and throughput
//
// The CSV needs a header with customer_id and amount; location and
// payment_method are optional.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// PurchaseRow is one purchase to replay.
type PurchaseRow struct {
	CustomerID    string
	Amount        float64
	Location      string
	PaymentMethod string
}

// purchaseRequest mirrors the POST /purchases body.
type purchaseRequest struct {
	CustomerID    string  `json:"customerId"`
	Amount        float64 `json:"amount"`
	Location      string  `json:"location"`
	PaymentMethod string  `json:"paymentMethod"`
}

type purchaseResponse struct {
	Points int64  `json:"points"`
	Tier   string `json:"tier"`
}

type reconcileResponse struct {
	Changed bool `json:"changed"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	TotalConflicts int64 // 409 after the server exhausted its retries

	ProcessingTimeMs int64

	Customers       int64
	DriftedBalances int64
}

type client struct {
	http     *http.Client
	baseURL  string
	tenantID string
}

func main() {
	csvPath := flag.String("csv", "", "Path to a purchases CSV (generated load if empty)")
	baseURL := flag.String("url", "http://localhost:8080", "Magpie base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	customers := flag.Int("customers", 20, "Customers to generate load for (ignored with -csv)")
	purchases := flag.Int("purchases", 2000, "Purchases to send (0 = whole CSV)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each purchase result")
	flag.Parse()

	fmt.Println("MAGPIE BENCHMARK - purchase ledger load")
	fmt.Printf("\nMagpie URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	c := &client{
		http:     &http.Client{Timeout: 10 * time.Second},
		baseURL:  *baseURL,
		tenantID: *tenantID,
	}

	if err := c.checkHealth(); err != nil {
		fmt.Printf("ERROR: Magpie not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Magpie is running:")
		fmt.Println("  go run ./cmd/magpie")
		os.Exit(1)
	}
	fmt.Println("Magpie is healthy")

	var rows []PurchaseRow
	var err error
	if *csvPath != "" {
		rows, err = readPurchasesCSV(*csvPath, *purchases)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		rows = generatePurchases(*customers, *purchases)
	}

	ids := lo.Uniq(lo.Map(rows, func(r PurchaseRow, _ int) string { return r.CustomerID }))
	fmt.Printf("Loaded %d purchases across %d customers\n", len(rows), len(ids))

	for _, id := range ids {
		if err := c.enroll(id); err != nil {
			fmt.Printf("ERROR: enrolling %s: %v\n", id, err)
			os.Exit(1)
		}
	}

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(c, rows, *workers, *verbose)
	duration := time.Since(startTime)

	fmt.Println("Reconciling balances...")
	for _, id := range ids {
		metrics.Customers++
		changed, err := c.reconcile(id)
		if err != nil {
			fmt.Printf("ERROR: reconciling %s: %v\n", id, err)
			continue
		}
		if changed {
			metrics.DriftedBalances++
		}
	}

	printResults(metrics, duration)
	if metrics.DriftedBalances > 0 {
		os.Exit(2)
	}
}

func (c *client) checkHealth() error {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// do sends a staff request and decodes the JSON response into out.
func (c *client) do(method, path string, body any, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", c.tenantID)
	req.Header.Set("X-User-ID", "benchmark")
	req.Header.Set("X-User-Role", "admin")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *client) enroll(id string) error {
	status, err := c.do(http.MethodPost, "/customers", map[string]string{
		"id":   id,
		"name": "Benchmark " + id,
	}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusConflict {
		return fmt.Errorf("status %d", status)
	}
	return nil
}

func (c *client) reconcile(id string) (bool, error) {
	var res reconcileResponse
	status, err := c.do(http.MethodPost, "/customers/"+id+"/reconcile", nil, &res)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("status %d", status)
	}
	return res.Changed, nil
}

func readPurchasesCSV(path string, limit int) ([]PurchaseRow, error) {
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
	for _, required := range []string{"customer_id", "amount"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var rows []PurchaseRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		amount, err := strconv.ParseFloat(field(record, "amount"), 64)
		if err != nil || amount < 0 {
			continue
		}

		rows = append(rows, PurchaseRow{
			CustomerID:    field(record, "customer_id"),
			Amount:        amount,
			Location:      field(record, "location"),
			PaymentMethod: field(record, "payment_method"),
		})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

// generatePurchases spreads purchases over a small set of customers so that
// concurrent writes to the same balance are common.
func generatePurchases(customers, count int) []PurchaseRow {
	customers = max(customers, 1)
	methods := []string{"card", "cash", "mobile"}

	rows := make([]PurchaseRow, count)
	for i := range rows {
		rows[i] = PurchaseRow{
			CustomerID:    fmt.Sprintf("bench-%04d", rand.IntN(customers)),
			Amount:        float64(rand.IntN(20000)) / 100,
			Location:      "Benchmark Store",
			PaymentMethod: methods[rand.IntN(len(methods))],
		}
	}
	return rows
}

func runBenchmark(c *client, rows []PurchaseRow, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan PurchaseRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for row := range work {
				start := time.Now()
				var res purchaseResponse
				status, err := c.do(http.MethodPost, "/purchases", purchaseRequest{
					CustomerID:    row.CustomerID,
					Amount:        row.Amount,
					Location:      row.Location,
					PaymentMethod: row.PaymentMethod,
				}, &res)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				switch {
				case err != nil:
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", row.CustomerID, err)
					}
					continue
				case status == http.StatusConflict:
					atomic.AddInt64(&metrics.TotalConflicts, 1)
					continue
				case status != http.StatusCreated:
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> status %d\n", row.CustomerID, status)
					}
					continue
				}

				if verbose {
					fmt.Printf("%-10s | Amount: $%9.2f | Balance: %8d | Tier: %s\n",
						row.CustomerID, row.Amount, res.Points, res.Tier)
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()

	return metrics
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nREQUESTS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Conflicts:        %d\n", m.TotalConflicts)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nLEDGER CONSISTENCY\n")
	fmt.Printf("   Customers:        %d\n", m.Customers)
	fmt.Printf("   Drifted balances: %d\n", m.DriftedBalances)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f purchases/sec\n", tps)
	}

	fmt.Println()
	if m.DriftedBalances == 0 {
		fmt.Println("   Every cached balance matches its ledger")
	} else {
		fmt.Println("   Cached balances drifted from the ledger and were repaired")
	}
	fmt.Println()
}
