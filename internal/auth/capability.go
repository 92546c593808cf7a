package auth

import "github.com/mtsdb/restaurant-system/internal/enum"

// Capability names a workflow operation a principal may perform. Every
// mutating boundary checks one of these through Can instead of comparing
// role strings ad hoc.
type Capability string

const (
	CapRegisterTable  Capability = "table:register"
	CapOpenSession    Capability = "session:open"
	CapCloseSession   Capability = "session:close"
	CapRequestBill    Capability = "session:request_bill"
	CapCreateOrder    Capability = "order:create"
	CapAddItem        Capability = "order:add_item"
	CapAdvanceItem    Capability = "order:advance_item"
	CapDeleteItem     Capability = "order:delete_item"
	CapViewStation    Capability = "station:view"
	CapCreateInvoice  Capability = "invoice:create"
	CapPayInvoice     Capability = "invoice:pay"
	CapViewInvoice    Capability = "invoice:view"
	CapManageSettings Capability = "settings:manage"
	CapManageMenu     Capability = "menu:manage"
	CapManageUsers    Capability = "users:manage"
)

// roleCapabilities is the single source of truth for role permissions.
// Admin is handled in Can and holds every capability.
var roleCapabilities = map[string]map[Capability]bool{
	enum.RoleWaiter: {
		CapOpenSession: true,
		CapRequestBill: true,
		CapCreateOrder: true,
		CapAddItem:     true,
		CapDeleteItem:  true,
		CapViewStation: true,
	},
	enum.RoleChef: {
		CapAdvanceItem: true,
		CapViewStation: true,
	},
	enum.RoleBarista: {
		CapAdvanceItem: true,
		CapViewStation: true,
	},
	enum.RoleCashier: {
		CapCloseSession:  true,
		CapRequestBill:   true,
		CapCreateInvoice: true,
		CapPayInvoice:    true,
		CapViewInvoice:   true,
		CapViewStation:   true,
	},
}

// Can reports whether the claims' role grants the capability.
func (c *Claims) Can(cap Capability) bool {
	if c == nil {
		return false
	}
	if c.Role == enum.RoleAdmin {
		return true
	}
	return roleCapabilities[c.Role][cap]
}

// Station returns the prep station the claims' role may mutate, or ""
// if the role is not station staff. Admin may act for either station,
// so callers must check CanAdvanceAt rather than comparing Station.
func (c *Claims) Station() string {
	switch c.Role {
	case enum.RoleChef:
		return enum.DestinationKitchen
	case enum.RoleBarista:
		return enum.DestinationBar
	}
	return ""
}

// CanAdvanceAt reports whether the claims may advance items routed to
// the given destination. Chef is scoped to the kitchen, barista to the
// bar; cross-station advances are rejected regardless of other
// capabilities. Admin may advance at both stations.
func (c *Claims) CanAdvanceAt(destination string) bool {
	if c == nil || !c.Can(CapAdvanceItem) {
		return false
	}
	if c.Role == enum.RoleAdmin {
		return true
	}
	return c.Station() == destination
}
