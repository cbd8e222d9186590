package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ISOTimeFormat renders snapshot timestamps in UTC with millisecond precision.
const ISOTimeFormat = "2006-01-02T15:04:05.000Z"

const hashPrefix = "0x"

type EntryStatus string

const (
	EntryStatusVerified EntryStatus = "VERIFIED"
	EntryStatusPending  EntryStatus = "PENDING"
)

// OrderSnapshot is the field set hashed into an audit entry.
type OrderSnapshot struct {
	OrderID              string          `json:"orderId"`
	ProductID            string          `json:"productId"`
	VendorID             string          `json:"vendorId"`
	BusinessID           string          `json:"businessId"`
	CreatedBy            string          `json:"createdBy"`
	ApprovedBy           *string         `json:"approvedBy"`
	Quantity             int             `json:"quantity"`
	TotalValue           decimal.Decimal `json:"totalValue"`
	Status               OrderStatus     `json:"status"`
	ExpectedDeliveryDate *string         `json:"expectedDeliveryDate"`
	ActualDeliveryDate   *string         `json:"actualDeliveryDate"`
	DispatchedAt         *string         `json:"dispatchedAt"`
	DeliveredAt          *string         `json:"deliveredAt"`
	RejectionReason      *string         `json:"rejectionReason"`
}

// SnapshotOf extracts the hashed fields from an order.
func SnapshotOf(o Order) OrderSnapshot {
	return OrderSnapshot{
		OrderID:              o.ID,
		ProductID:            o.ProductID,
		VendorID:             o.VendorID,
		BusinessID:           o.BusinessID,
		CreatedBy:            o.CreatedBy,
		ApprovedBy:           cloneString(o.ApprovedBy),
		Quantity:             o.Quantity,
		TotalValue:           o.TotalValue,
		Status:               o.Status,
		ExpectedDeliveryDate: isoTime(o.ExpectedDeliveryDate),
		ActualDeliveryDate:   isoTime(o.ActualDeliveryDate),
		DispatchedAt:         isoTime(o.DispatchedAt),
		DeliveredAt:          isoTime(o.DeliveredAt),
		RejectionReason:      cloneString(o.RejectionReason),
	}
}

// Canonical serializes the snapshot with lexicographically sorted keys and no whitespace.
// It is the only serialization used for hashing, on append and on verification alike.
func (s OrderSnapshot) Canonical() ([]byte, error) {
	fields := map[string]any{
		"orderId":              s.OrderID,
		"productId":            s.ProductID,
		"vendorId":             s.VendorID,
		"businessId":           s.BusinessID,
		"createdBy":            s.CreatedBy,
		"approvedBy":           s.ApprovedBy,
		"quantity":             s.Quantity,
		"totalValue":           json.Number(s.TotalValue.String()),
		"status":               string(s.Status),
		"expectedDeliveryDate": s.ExpectedDeliveryDate,
		"actualDeliveryDate":   s.ActualDeliveryDate,
		"dispatchedAt":         s.DispatchedAt,
		"deliveredAt":          s.DeliveredAt,
		"rejectionReason":      s.RejectionReason,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseSnapshot decodes a stored canonical snapshot.
func ParseSnapshot(data []byte) (OrderSnapshot, error) {
	var s OrderSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return OrderSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// ComputeHash returns 0x-prefixed hex SHA-256 of canonical followed by the previous hash, if any.
func ComputeHash(canonical []byte, previousHash *string) string {
	h := sha256.New()
	h.Write(canonical)
	if previousHash != nil {
		h.Write([]byte(*previousHash))
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil))
}

// AuditLogEntry is one immutable record of a lifecycle event. Sequence is its position in the order's chain.
type AuditLogEntry struct {
	ID           string
	OrderID      string
	BusinessID   string
	Action       AuditAction
	DataHash     string
	PreviousHash *string
	Status       EntryStatus
	Timestamp    time.Time
	CreatedBy    *string
	Sequence     int
	Snapshot     OrderSnapshot
}

// AuditEntryView is the read-only projection exposed to general readers; it omits the snapshot.
type AuditEntryView struct {
	ID           string      `json:"id"`
	OrderID      string      `json:"orderId"`
	Action       AuditAction `json:"action"`
	DataHash     string      `json:"dataHash"`
	PreviousHash *string     `json:"previousHash"`
	Status       EntryStatus `json:"status"`
	Timestamp    time.Time   `json:"timestamp"`
	CreatedBy    *string     `json:"createdBy"`
	BusinessID   string      `json:"businessId"`
}

func (e AuditLogEntry) View() AuditEntryView {
	return AuditEntryView{
		ID:           e.ID,
		OrderID:      e.OrderID,
		Action:       e.Action,
		DataHash:     e.DataHash,
		PreviousHash: e.PreviousHash,
		Status:       e.Status,
		Timestamp:    e.Timestamp,
		CreatedBy:    e.CreatedBy,
		BusinessID:   e.BusinessID,
	}
}

// EntryVerification is the outcome of re-deriving one entry's hash and link.
type EntryVerification struct {
	EntryID              string      `json:"entryId"`
	Sequence             int         `json:"sequence"`
	Action               AuditAction `json:"action"`
	Status               EntryStatus `json:"status"`
	HashValid            bool        `json:"hashValid"`
	LinkValid            bool        `json:"linkValid"`
	ExpectedPreviousHash *string     `json:"expectedPreviousHash"`
	RecomputedHash       string      `json:"recomputedHash"`
	Error                string      `json:"error,omitempty"`
}

// ChainVerification summarizes a whole order chain.
type ChainVerification struct {
	OrderID        string              `json:"orderId"`
	Valid          bool                `json:"valid"`
	EntriesChecked int                 `json:"entriesChecked"`
	BrokenAt       string              `json:"brokenAt,omitempty"`
	Entries        []EntryVerification `json:"entries"`
}

// VerifyEntry checks entry against the entry immediately before it (nil for the first entry).
func VerifyEntry(entry AuditLogEntry, prev *AuditLogEntry) EntryVerification {
	var expectedPrev *string
	if prev != nil {
		h := prev.DataHash
		expectedPrev = &h
	}

	v := EntryVerification{
		EntryID:              entry.ID,
		Sequence:             entry.Sequence,
		Action:               entry.Action,
		Status:               EntryStatusPending,
		ExpectedPreviousHash: expectedPrev,
	}

	canonical, err := entry.Snapshot.Canonical()
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.RecomputedHash = ComputeHash(canonical, expectedPrev)
	v.HashValid = v.RecomputedHash == entry.DataHash
	v.LinkValid = equalHash(entry.PreviousHash, expectedPrev)
	if v.HashValid && v.LinkValid {
		v.Status = EntryStatusVerified
	}
	return v
}

// VerifyChain checks entries in chain order. After the first failing entry every later entry
// is reported PENDING, since nothing after a break can be trusted.
func VerifyChain(orderID string, entries []AuditLogEntry) ChainVerification {
	result := ChainVerification{
		OrderID: orderID,
		Valid:   true,
		Entries: make([]EntryVerification, 0, len(entries)),
	}

	var prev *AuditLogEntry
	for i := range entries {
		v := VerifyEntry(entries[i], prev)
		if !result.Valid {
			v.Status = EntryStatusPending
		} else if v.Status != EntryStatusVerified {
			result.Valid = false
			result.BrokenAt = entries[i].ID
		}
		result.Entries = append(result.Entries, v)
		prev = &entries[i]
	}
	result.EntriesChecked = len(result.Entries)
	return result
}

func equalHash(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(ISOTimeFormat)
	return &s
}
