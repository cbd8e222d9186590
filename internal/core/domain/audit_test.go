package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanonical_SortedAndCompact(t *testing.T) {
	canonical, err := SnapshotOf(newOrder(OrderStatusApproved)).Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}

	want := `{"actualDeliveryDate":null,"approvedBy":null,"businessId":"biz-1","createdBy":"mgr-1",` +
		`"deliveredAt":null,"dispatchedAt":null,"expectedDeliveryDate":null,"orderId":"order-1",` +
		`"productId":"prod-1","quantity":10,"rejectionReason":null,"status":"APPROVED",` +
		`"totalValue":100,"vendorId":"vendor-1"}`
	if string(canonical) != want {
		t.Errorf("unexpected canonical form:\n got %s\nwant %s", canonical, want)
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	o := newOrder(OrderStatusDispatched)
	reason := "<late> & \"damaged\""
	o.RejectionReason = &reason
	o.TotalValue = decimal.RequireFromString("1234.50")

	first, err := SnapshotOf(o).Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := SnapshotOf(o.Clone()).Canonical()
		if string(again) != string(first) {
			t.Fatalf("canonical form changed between runs:\n%s\n%s", first, again)
		}
	}

	parsed, err := ParseSnapshot(first)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reencoded, _ := parsed.Canonical()
	if string(reencoded) != string(first) {
		t.Errorf("stored snapshot does not reproduce its canonical form:\n%s\n%s", first, reencoded)
	}
}

func TestSnapshotOf_TimeFormat(t *testing.T) {
	o := newOrder(OrderStatusDispatched)
	loc := time.FixedZone("UTC+2", 2*60*60)
	d := time.Date(2026, 3, 10, 12, 0, 0, 123456789, loc)
	o.DispatchedAt = &d

	s := SnapshotOf(o)
	if s.DispatchedAt == nil || *s.DispatchedAt != "2026-03-10T10:00:00.123Z" {
		t.Errorf("unexpected timestamp: %v", s.DispatchedAt)
	}
}

func TestComputeHash(t *testing.T) {
	canonical := []byte(`{"a":1}`)

	sum := sha256.Sum256(canonical)
	if got, want := ComputeHash(canonical, nil), "0x"+hex.EncodeToString(sum[:]); got != want {
		t.Errorf("genesis hash: got %s want %s", got, want)
	}

	prev := "0xabc"
	sum = sha256.Sum256(append([]byte(`{"a":1}`), prev...))
	if got, want := ComputeHash(canonical, &prev), "0x"+hex.EncodeToString(sum[:]); got != want {
		t.Errorf("linked hash: got %s want %s", got, want)
	}
}

func buildChain(t *testing.T, n int) []AuditLogEntry {
	t.Helper()
	var chain []AuditLogEntry
	var prev *string
	for i := 0; i < n; i++ {
		o := newOrder(OrderStatusApproved)
		o.Quantity = i + 1
		snap := SnapshotOf(o)
		canonical, err := snap.Canonical()
		if err != nil {
			t.Fatalf("canonical: %v", err)
		}
		e := AuditLogEntry{
			ID:           string(rune('a' + i)),
			OrderID:      o.ID,
			Action:       AuditOrderApproved,
			DataHash:     ComputeHash(canonical, prev),
			PreviousHash: prev,
			Status:       EntryStatusVerified,
			Sequence:     i + 1,
			Snapshot:     snap,
		}
		chain = append(chain, e)
		h := e.DataHash
		prev = &h
	}
	return chain
}

func TestVerifyChain_Valid(t *testing.T) {
	result := VerifyChain("order-1", buildChain(t, 4))
	if !result.Valid || result.EntriesChecked != 4 || result.BrokenAt != "" {
		t.Errorf("expected valid chain, got %+v", result)
	}
}

func TestVerifyChain_TamperCascades(t *testing.T) {
	chain := buildChain(t, 5)
	chain[1].Snapshot.Status = OrderStatusDelivered

	result := VerifyChain("order-1", chain)
	if result.Valid {
		t.Fatal("expected invalid chain")
	}
	if result.BrokenAt != chain[1].ID {
		t.Errorf("expected break at %s, got %s", chain[1].ID, result.BrokenAt)
	}
	if result.Entries[0].Status != EntryStatusVerified {
		t.Errorf("entry before the break must stay VERIFIED")
	}
	for i := 1; i < len(result.Entries); i++ {
		if result.Entries[i].Status != EntryStatusPending {
			t.Errorf("entry %d: expected PENDING, got %s", i, result.Entries[i].Status)
		}
	}
}

func TestVerifyEntry_FirstEntryWithPrevious(t *testing.T) {
	chain := buildChain(t, 1)
	bogus := "0x00"
	chain[0].PreviousHash = &bogus

	v := VerifyEntry(chain[0], nil)
	if v.LinkValid || v.Status != EntryStatusPending {
		t.Errorf("expected first entry with a previous hash to fail, got %+v", v)
	}
}
