package bookingRepo

import (
	"errors"

	"buildbook/models"
)

// ErrNotFound is returned when no booking document exists for the id.
var ErrNotFound = errors.New("booking state not found")

// ErrVersionConflict is returned by Save when the document version moved
// underneath the caller. The caller reloads and retries the transition.
var ErrVersionConflict = errors.New("booking state version conflict")

// BookingStateRepository is the durable store for booking contexts. Save is
// an optimistic read-modify-write: it only commits when version still
// matches the stored document, which gives the flow layer its per-booking
// serialization guarantee together with the Redis lock.
type BookingStateRepository interface {
	Create(bc models.BookingContext) error
	Load(bookingID string) (*models.BookingContext, error)
	Save(bookingID string, state models.BookingState, data models.BookingStateData, version int64) error
	Delete(bookingID string) error
}
