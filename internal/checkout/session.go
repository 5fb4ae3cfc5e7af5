package checkout

import (
	"time"

	"github.com/latasoft/confiaticket-checkout/internal/pricing"
)

// PaymentRedirect is where the buyer continues the payment
type PaymentRedirect struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// Session is the checkout state of one purchase
type Session struct {
	Step            Step               `json:"step"`
	Phase           Phase              `json:"phase,omitempty"`
	ReservationID   *int               `json:"reservationId,omitempty"`
	ReservationIDs  []int              `json:"reservationIds,omitempty"`
	PurchaseGroupID *string            `json:"purchaseGroupId,omitempty"`
	Error           string             `json:"error,omitempty"`
	ErrorCode       ErrorCode          `json:"errorCode,omitempty"`
	LoginRedirect   string             `json:"loginRedirect,omitempty"`
	Payment         *PaymentRedirect   `json:"payment,omitempty"`
	Breakdown       *pricing.Breakdown `json:"breakdown,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// LoginRequired reports whether the buyer must sign in before continuing
func (s Session) LoginRequired() bool {
	return s.LoginRedirect != ""
}

func (s Session) clone() Session {
	out := s
	if s.ReservationID != nil {
		id := *s.ReservationID
		out.ReservationID = &id
	}
	if s.PurchaseGroupID != nil {
		pg := *s.PurchaseGroupID
		out.PurchaseGroupID = &pg
	}
	out.ReservationIDs = append([]int(nil), s.ReservationIDs...)
	if s.Payment != nil {
		p := *s.Payment
		out.Payment = &p
	}
	if s.Breakdown != nil {
		b := *s.Breakdown
		b.Lines = append(b.Lines[:0:0], s.Breakdown.Lines...)
		out.Breakdown = &b
	}
	return out
}

// Transition is one recorded step change
type Transition struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	EventID         int       `json:"eventId"`
	From            Step      `json:"from"`
	To              Step      `json:"to"`
	Reason          string    `json:"reason,omitempty"`
	ErrorCode       ErrorCode `json:"errorCode,omitempty"`
	ReservationID   *int      `json:"reservationId,omitempty"`
	PurchaseGroupID *string   `json:"purchaseGroupId,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
