// Package vesting implements the release curve for purchased tokens:
// an immediate-release slice available from the start, a cliff during
// which only that slice unlocks, and a linear tail over the remainder.
package vesting

import (
	"github.com/pflow-xyz/go-presale/fixedpoint"
)

// Schedule is a buyer's aggregate vesting position. It is created by the
// buyer's first purchase; later purchases only grow TotalAmount, so every
// purchase vests on the first purchase's clock and terms.
type Schedule struct {
	TotalAmount    uint64 `json:"totalAmount"`    // token smallest units
	ReleasedAmount uint64 `json:"releasedAmount"` // token smallest units
	StartTime      int64  `json:"startTime"`      // unix seconds of first purchase
	Cliff          int64  `json:"cliff"`          // seconds after StartTime
	Duration       int64  `json:"duration"`       // seconds of linear release
	ImmediatePct   uint8  `json:"immediatePct"`   // 0..100
}

// Immediate returns the immediate-release slice, floor(total*pct/100).
func (s Schedule) Immediate() (uint64, error) {
	return fixedpoint.Percent(s.TotalAmount, s.ImmediatePct)
}

// Vested returns the total amount unlocked at time now.
//
// A zero Duration degenerates to full unlock at StartTime. Before the
// cliff passes only the immediate slice is unlocked. Afterwards the
// remainder releases linearly over Duration measured from StartTime.
func Vested(s Schedule, now int64) (uint64, error) {
	if s.TotalAmount == 0 {
		return 0, nil
	}
	if s.Duration == 0 {
		return s.TotalAmount, nil
	}

	imm, err := s.Immediate()
	if err != nil {
		return 0, err
	}

	if now < s.StartTime+s.Cliff {
		return imm, nil
	}

	elapsed := now - s.StartTime
	if elapsed >= s.Duration {
		return s.TotalAmount, nil
	}

	tail, err := fixedpoint.Sub(s.TotalAmount, imm)
	if err != nil {
		return 0, err
	}
	portion, err := fixedpoint.MulDiv(tail, uint64(elapsed), uint64(s.Duration))
	if err != nil {
		return 0, err
	}
	return fixedpoint.Add(imm, portion)
}

// Claimable returns the amount releasable at time now, net of what has
// already been released. It never goes negative: a schedule whose
// released amount has caught up with the vested amount yields zero.
func Claimable(s Schedule, now int64) (uint64, error) {
	vested, err := Vested(s, now)
	if err != nil {
		return 0, err
	}
	if s.ReleasedAmount >= vested {
		return 0, nil
	}
	return vested - s.ReleasedAmount, nil
}
