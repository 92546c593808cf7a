package enum

// --- Table / session state machines ---

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
)

const (
	SessionStatusOpen          = "open"
	SessionStatusBillRequested = "bill_requested"
	SessionStatusClosed        = "closed"
)

// SessionIsActive reports whether a session in the given status still
// occupies its table.
func SessionIsActive(status string) bool {
	return status == SessionStatusOpen || status == SessionStatusBillRequested
}

// sessionTransitions maps a session status to the statuses it may move to.
// open -> closed is the bill-skipped path (walk-out); closed is terminal.
var sessionTransitions = map[string][]string{
	SessionStatusOpen:          {SessionStatusBillRequested, SessionStatusClosed},
	SessionStatusBillRequested: {SessionStatusClosed},
}

// ValidSessionTransition reports whether current -> next is a legal
// session transition.
func ValidSessionTransition(current, next string) bool {
	for _, s := range sessionTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// --- Order item preparation ---

const (
	ItemStatusWaiting    = "waiting"
	ItemStatusInProgress = "in_progress"
	ItemStatusReady      = "ready"
	ItemStatusServed     = "served"
)

// nextItemStatus is the strict forward-only chain. Each status has at
// most one legal successor; served is terminal.
var nextItemStatus = map[string]string{
	ItemStatusWaiting:    ItemStatusInProgress,
	ItemStatusInProgress: ItemStatusReady,
	ItemStatusReady:      ItemStatusServed,
}

// NextItemStatus returns the single legal successor of the given item
// status, or "" if the status is terminal or unknown.
func NextItemStatus(current string) string {
	return nextItemStatus[current]
}

// ValidItemStatus reports whether s is one of the four prep statuses.
func ValidItemStatus(s string) bool {
	switch s {
	case ItemStatusWaiting, ItemStatusInProgress, ItemStatusReady, ItemStatusServed:
		return true
	}
	return false
}

// --- Stations ---

const (
	DestinationKitchen = "kitchen"
	DestinationBar     = "bar"
)

const (
	ItemTypeFood  = "food"
	ItemTypeDrink = "drink"
)

// DestinationForItemType routes a menu item type to its prep station.
func DestinationForItemType(itemType string) string {
	if itemType == ItemTypeDrink {
		return DestinationBar
	}
	return DestinationKitchen
}

func ValidItemType(s string) bool {
	return s == ItemTypeFood || s == ItemTypeDrink
}

// --- Invoices ---

const (
	InvoiceStatusUnpaid = "unpaid"
	InvoiceStatusPaid   = "paid"
)

// --- Roles ---

const (
	RoleWaiter  = "waiter"
	RoleChef    = "chef"
	RoleBarista = "barista"
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)

func ValidRole(s string) bool {
	switch s {
	case RoleWaiter, RoleChef, RoleBarista, RoleCashier, RoleAdmin:
		return true
	}
	return false
}
