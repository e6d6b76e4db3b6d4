package orders

import "errors"

var ErrInvalidStatus = errors.New("status must be a boolean")

// Status is the two-state delivery flag of an order: false while the order
// is pending, true once it is out for delivery. It stays a JSON boolean.
type Status bool

const (
	StatusPending        Status = false
	StatusOutForDelivery Status = true
)

func (s Status) String() string {
	if s {
		return "out-for-delivery"
	}
	return "pending"
}

// UnmarshalJSON accepts true/false, 1/0 and their quoted forms.
func (s *Status) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true", "1", `"true"`, `"1"`, `"True"`:
		*s = StatusOutForDelivery
	case "false", "0", `"false"`, `"0"`, `"False"`:
		*s = StatusPending
	default:
		return ErrInvalidStatus
	}
	return nil
}
