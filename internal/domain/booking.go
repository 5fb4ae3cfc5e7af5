package domain

// HoldSection is one cart line as submitted to the hold endpoint
type HoldSection struct {
	SectionID int      `json:"sectionId"`
	Quantity  int      `json:"quantity"`
	Seats     []string `json:"seats,omitempty"`
}

// HoldRequest reserves every line of an OWN cart atomically
type HoldRequest struct {
	EventID  int           `json:"eventId"`
	Sections []HoldSection `json:"sections"`
}

// HoldReservation is one reservation created by a hold
type HoldReservation struct {
	ID        int `json:"id"`
	SectionID int `json:"sectionId,omitempty"`
	Quantity  int `json:"quantity,omitempty"`
}

// HoldResult groups the reservations created for one cart
type HoldResult struct {
	PurchaseGroupID string            `json:"purchaseGroupId"`
	Reservations    []HoldReservation `json:"reservations"`
}

// ReservationRequest reserves a single resale ticket
type ReservationRequest struct {
	EventID        int `json:"eventId"`
	Quantity       int `json:"quantity"`
	ResaleTicketID int `json:"resaleTicketId"`
}

// Reservation is the backend's answer to a ReservationRequest
type Reservation struct {
	ID int `json:"id"`
}

// PaymentInit is returned when a payment is started. An empty URL means the
// backend completed the payment without a redirect.
type PaymentInit struct {
	URL   string `json:"url,omitempty"`
	Token string `json:"token,omitempty"`
}

// TestPaymentResult is the outcome of a simulated payment
type TestPaymentResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// OccupiedSeats lists seats already taken in a section
type OccupiedSeats struct {
	OccupiedSeats []SeatID `json:"occupiedSeats"`
}

// SystemConfig carries platform settings relevant to checkout
type SystemConfig struct {
	PlatformFee struct {
		FeeBps int `json:"feeBps"`
	} `json:"platformFee"`
}

// TicketQuery selects purchased tickets by reservation or purchase group
type TicketQuery struct {
	ReservationID   *int
	PurchaseGroupID *string
}

// PurchasedTicket is an issued ticket shown after a successful payment
type PurchasedTicket struct {
	ID            int     `json:"id"`
	ReservationID int     `json:"reservationId"`
	SectionName   string  `json:"sectionName,omitempty"`
	Seat          *string `json:"seat,omitempty"`
	TicketCode    string  `json:"ticketCode"`
	QRCode        string  `json:"qrCode,omitempty"`
}
