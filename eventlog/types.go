// Package eventlog persists and analyzes the presale's emitted events.
// Events are stored as JSON Lines, one record per event; a Log aggregates
// records for per-buyer history and summary statistics.
package eventlog

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pflow-xyz/go-presale/presale"
)

// Record is one persisted event. Buyer and At are denormalized out of the
// payload so the log can be grouped and sorted without decoding Data.
type Record struct {
	Type  string          `json:"type"`
	Buyer string          `json:"buyer,omitempty"`
	At    int64           `json:"at,omitempty"` // unix seconds, 0 when the event carries no clock
	Data  json.RawMessage `json:"data,omitempty"`
}

// FromEvent flattens a live event into a record.
func FromEvent(evt presale.Event) (Record, error) {
	rec := Record{Type: evt.Type}

	switch d := evt.Data.(type) {
	case presale.TokensPurchased:
		rec.Buyer, rec.At = d.Buyer, d.Timestamp
	case presale.TokensClaimed:
		rec.Buyer, rec.At = d.Buyer, d.Timestamp
	case presale.RefundIssued:
		rec.Buyer, rec.At = d.Buyer, d.Timestamp
	case presale.SoftCapReached:
		rec.At = d.Timestamp
	case presale.PresaleFinalized:
		rec.At = d.Timestamp
	case presale.EmergencyWithdraw:
		rec.At = d.Timestamp
	case presale.RoundAdvanced:
		rec.At = d.Timestamp
	case presale.WhitelistUpdated:
		rec.Buyer = d.Buyer
	case presale.KycVerified:
		rec.Buyer = d.Buyer
	}

	if evt.Data != nil {
		data, err := json.Marshal(evt.Data)
		if err != nil {
			return Record{}, fmt.Errorf("marshal %s payload: %w", evt.Type, err)
		}
		rec.Data = data
	}
	return rec, nil
}

// Decode unmarshals the record's payload into v.
func (r Record) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("record %s has no payload", r.Type)
	}
	return json.Unmarshal(r.Data, v)
}

// Log is an in-memory aggregate over event records.
type Log struct {
	Records []Record
}

// NewLog creates a log over the given records.
func NewLog(records []Record) *Log {
	return &Log{Records: records}
}

// NumEvents returns the total record count.
func (l *Log) NumEvents() int {
	return len(l.Records)
}

// OfType returns records matching one event type, in log order.
func (l *Log) OfType(eventType string) []Record {
	var out []Record
	for _, rec := range l.Records {
		if rec.Type == eventType {
			out = append(out, rec)
		}
	}
	return out
}

// ByBuyer groups records carrying a buyer by that buyer, preserving order.
func (l *Log) ByBuyer() map[string][]Record {
	out := make(map[string][]Record)
	for _, rec := range l.Records {
		if rec.Buyer != "" {
			out[rec.Buyer] = append(out[rec.Buyer], rec)
		}
	}
	return out
}

// Buyers returns the sorted set of buyers appearing in the log.
func (l *Log) Buyers() []string {
	seen := make(map[string]bool)
	for _, rec := range l.Records {
		if rec.Buyer != "" {
			seen[rec.Buyer] = true
		}
	}
	out := make([]string, 0, len(seen))
	for buyer := range seen {
		out = append(out, buyer)
	}
	sort.Strings(out)
	return out
}

// Summary aggregates the log's headline numbers.
type Summary struct {
	NumEvents        int            `json:"numEvents"`
	EventCounts      map[string]int `json:"eventCounts"`
	UniqueBuyers     int            `json:"uniqueBuyers"`
	TokensPurchased  uint64         `json:"tokensPurchased"`
	TokensClaimed    uint64         `json:"tokensClaimed"`
	RefundedUSD      uint64         `json:"refundedUsd"`
	SoftCapReached   bool           `json:"softCapReached"`
	Finalized        bool           `json:"finalized"`
	TotalRaisedUSD   uint64         `json:"totalRaisedUsd"` // from the finalize event; 0 until finalized
}

// Summarize walks the log once and totals purchases, claims, and refunds.
// Token and USD sums saturate rather than wrap on overflow.
func (l *Log) Summarize() Summary {
	s := Summary{
		NumEvents:   len(l.Records),
		EventCounts: make(map[string]int),
	}
	s.UniqueBuyers = len(l.Buyers())

	for _, rec := range l.Records {
		s.EventCounts[rec.Type]++

		switch rec.Type {
		case presale.EventTokensPurchased:
			var d presale.TokensPurchased
			if rec.Decode(&d) == nil {
				s.TokensPurchased = satAdd(s.TokensPurchased, d.Amount)
			}
		case presale.EventTokensClaimed:
			var d presale.TokensClaimed
			if rec.Decode(&d) == nil {
				s.TokensClaimed = satAdd(s.TokensClaimed, d.Amount)
			}
		case presale.EventRefundIssued:
			var d presale.RefundIssued
			if rec.Decode(&d) == nil {
				s.RefundedUSD = satAdd(s.RefundedUSD, d.AmountUSD)
			}
		case presale.EventSoftCapReached:
			s.SoftCapReached = true
		case presale.EventPresaleFinalized:
			s.Finalized = true
			var d presale.PresaleFinalized
			if rec.Decode(&d) == nil {
				s.TotalRaisedUSD = d.TotalRaisedUSD
			}
		}
	}
	return s
}

func satAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}
