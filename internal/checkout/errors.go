package checkout

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrAuthRequired        = errors.New("authentication required")
	ErrTestPaymentDisabled = errors.New("test payment is disabled")
	ErrNoReservation       = errors.New("no reservation to pay")
)

// ErrorCode is a backend failure code the checkout flow reacts to
type ErrorCode string

const (
	CodeUnknown                  ErrorCode = ""
	CodeUnauthorized             ErrorCode = "UNAUTHORIZED"
	CodeSectionInsufficientStock ErrorCode = "SECTION_INSUFFICIENT_STOCK"
	CodeSeatsAlreadyReserved     ErrorCode = "SEATS_ALREADY_RESERVED"
	CodeInsufficientStock        ErrorCode = "INSUFFICIENT_STOCK"
	CodeEventHasStarted          ErrorCode = "EVENT_HAS_STARTED"
	CodePaymentFailed            ErrorCode = "PAYMENT_FAILED"
)

var knownCodes = map[ErrorCode]bool{
	CodeUnauthorized:             true,
	CodeSectionInsufficientStock: true,
	CodeSeatsAlreadyReserved:     true,
	CodeInsufficientStock:        true,
	CodeEventHasStarted:          true,
	CodePaymentFailed:            true,
}

// ParseErrorCode maps a wire code to an ErrorCode, CodeUnknown when unrecognised
func ParseErrorCode(s string) ErrorCode {
	c := ErrorCode(strings.ToUpper(strings.TrimSpace(s)))
	if knownCodes[c] {
		return c
	}
	return CodeUnknown
}

// BackendError is a failed call to the ticketing backend
type BackendError struct {
	Status           int
	Code             ErrorCode
	RawCode          string
	Message          string
	ConflictingSeats []string
	SectionName      string
	Available        *int
}

func (e *BackendError) Error() string {
	code := e.RawCode
	if code == "" {
		code = string(e.Code)
	}
	if code == "" {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error %s (status %d): %s", code, e.Status, e.Message)
}

// IsUnauthorized reports whether the buyer's session was rejected
func (e *BackendError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Code == CodeUnauthorized
}

const (
	msgInsufficientStock = "No hay suficientes entradas disponibles para completar tu compra."
	msgEventHasStarted   = "El evento ya comenzó y no es posible comprar entradas."
	msgSeatsTaken        = "Algunos de los asientos seleccionados ya fueron reservados. Por favor elige otros."
	msgSectionNoStock    = "No hay suficientes entradas disponibles en una de las secciones."
	msgHoldFailed        = "No pudimos reservar tus entradas. Intenta nuevamente."
	msgPaymentFailed     = "No pudimos iniciar el pago. Intenta nuevamente."
)

// Translate turns a failure into its code and the message shown to the buyer
func Translate(err error, phase Phase) (ErrorCode, string) {
	var be *BackendError
	if !errors.As(err, &be) {
		return CodeUnknown, genericMessage(phase)
	}

	switch be.Code {
	case CodeSectionInsufficientStock:
		if be.SectionName == "" {
			return be.Code, msgSectionNoStock
		}
		if be.Available != nil {
			return be.Code, fmt.Sprintf("No hay suficientes entradas en la sección %s. Disponibles: %d.", be.SectionName, *be.Available)
		}
		return be.Code, fmt.Sprintf("No hay suficientes entradas en la sección %s.", be.SectionName)
	case CodeSeatsAlreadyReserved:
		if len(be.ConflictingSeats) == 0 {
			return be.Code, msgSeatsTaken
		}
		return be.Code, fmt.Sprintf("Los siguientes asientos ya fueron reservados: %s. Por favor elige otros.",
			strings.Join(be.ConflictingSeats, ", "))
	case CodeInsufficientStock:
		return be.Code, msgInsufficientStock
	case CodeEventHasStarted:
		return be.Code, msgEventHasStarted
	}

	if msg := strings.TrimSpace(be.Message); msg != "" {
		return be.Code, msg
	}
	return be.Code, genericMessage(phase)
}

func genericMessage(phase Phase) string {
	if phase == PhasePayment {
		return msgPaymentFailed
	}
	return msgHoldFailed
}
