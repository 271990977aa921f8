package booking

type Role string

const (
	RoleGuest  Role = "guest"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Actor is the identity a transition is requested on behalf of.
type Actor struct {
	ID   UserID
	Role Role
}

// SystemActor drives gateway callbacks and scheduled transitions.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// Authorize checks that actor may raise ev against b. Admins may act for either party.
func Authorize(actor Actor, ev Event, b Booking) error {
	if actor.Role == RoleAdmin {
		return nil
	}
	switch ev.(type) {
	case OwnerConfirm, OwnerReject:
		if actor.ID != "" && actor.ID == b.OwnerID {
			return nil
		}
	case GuestCancel, PaymentStarted:
		if actor.ID != "" && actor.ID == b.GuestID {
			return nil
		}
	case PaymentSucceeded, PaymentFailed, CheckOutPassed, RefundIssued:
		if actor.Role == RoleSystem {
			return nil
		}
	}
	return ErrUnauthorized
}

// CanView reports whether actor may read b.
func CanView(actor Actor, b Booking) bool {
	switch {
	case actor.Role == RoleAdmin || actor.Role == RoleSystem:
		return true
	case actor.ID == "":
		return false
	default:
		return actor.ID == b.GuestID || actor.ID == b.OwnerID
	}
}
