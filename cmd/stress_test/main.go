package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type createdOrder struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type chainCheck struct {
	Data struct {
		Valid          bool `json:"valid"`
		EntriesChecked int  `json:"entriesChecked"`
	} `json:"data"`
}

// Fires concurrent approvals at a running server. Each order must be approved exactly once
// and end up with a single valid audit entry, however many callers race for it.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	orderCount := flag.Int("orders", 20, "orders to create")
	racers := flag.Int("racers", 10, "concurrent approvals per order")
	flag.Parse()

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("X-Business-Id", "stress-biz")

	vendorID := "stress-vendor-" + uuid.NewString()
	orderIDs := make([]string, 0, *orderCount)
	for i := 0; i < *orderCount; i++ {
		var created createdOrder
		resp, err := client.R().
			SetHeader("X-Actor-Id", "stress-manager").
			SetHeader("X-Actor-Role", "MANAGER").
			SetBody(map[string]any{
				"productId": fmt.Sprintf("stress-product-%d", i),
				"vendorId":  vendorID,
				"quantity":  1 + i,
				"unitPrice": "9.99",
				"submit":    true,
			}).
			SetResult(&created).
			Post("/api/orders")
		if err != nil || resp.StatusCode() != http.StatusCreated {
			log.Fatalf("failed to create order %d: %v %s", i, err, resp.String())
		}
		orderIDs = append(orderIDs, created.Data.ID)
	}

	var approved, conflicts, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, id := range orderIDs {
		for r := 0; r < *racers; r++ {
			wg.Add(1)
			go func(orderID string, racer int) {
				defer wg.Done()

				var body apiResponse
				resp, err := client.R().
					SetHeader("X-Actor-Id", fmt.Sprintf("stress-owner-%d", racer)).
					SetHeader("X-Actor-Role", "OWNER").
					SetResult(&body).
					SetError(&body).
					Post("/api/orders/" + orderID + "/approve")
				switch {
				case err != nil:
					failed.Add(1)
				case resp.StatusCode() == http.StatusOK:
					approved.Add(1)
				case resp.StatusCode() == http.StatusConflict:
					conflicts.Add(1)
				default:
					log.Printf("unexpected %d for %s: %s", resp.StatusCode(), orderID, body.Message)
					failed.Add(1)
				}
			}(id, r)
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	brokenChains := 0
	for _, id := range orderIDs {
		var check chainCheck
		resp, err := client.R().SetResult(&check).Get("/api/orders/" + id + "/audit/verify")
		if err != nil || resp.StatusCode() != http.StatusOK || !check.Data.Valid || check.Data.EntriesChecked != 1 {
			brokenChains++
		}
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Orders:           %d\n", len(orderIDs))
	fmt.Printf("Racers per order: %d\n", *racers)
	fmt.Printf("Approved:         %d\n", approved.Load())
	fmt.Printf("Conflicts:        %d\n", conflicts.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Broken chains:    %d\n", brokenChains)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	wantConflicts := int32(len(orderIDs) * (*racers - 1))
	if approved.Load() == int32(len(orderIDs)) && conflicts.Load() == wantConflicts && failed.Load() == 0 {
		fmt.Printf("PASS: each order approved exactly once, %d racers refused\n", wantConflicts)
	} else {
		fmt.Printf("FAIL: expected %d approvals and %d conflicts\n", len(orderIDs), wantConflicts)
	}

	if brokenChains == 0 {
		fmt.Println("PASS: every audit chain verifies with a single entry")
	} else {
		fmt.Printf("FAIL: %d chains did not verify\n", brokenChains)
	}
}
