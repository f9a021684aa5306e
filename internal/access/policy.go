package access

import (
	"fmt"

	"littlelemon/internal/apperr"
)

// Operation names a gated action.
type Operation string

const (
	OpReadCatalog        Operation = "catalog.read"
	OpWriteCatalog       Operation = "catalog.write"
	OpSetFeatured        Operation = "catalog.set_featured"
	OpListAllCarts       Operation = "cart.list_all"
	OpUseCart            Operation = "cart.use"
	OpCreateOrder        Operation = "order.create"
	OpReadOrders         Operation = "order.read"
	OpAssignDeliveryCrew Operation = "order.assign_delivery_crew"
	OpMarkDelivered      Operation = "order.mark_delivered"
	OpDeleteOrder        Operation = "order.delete"
	OpPayOrder           Operation = "order.pay"
	OpReadReviews        Operation = "review.read"
	OpCreateReview       Operation = "review.create"
	OpManageManagers     Operation = "group.manager"
	OpManageDeliveryCrew Operation = "group.delivery_crew"
)

// Requirement is what an actor must hold to perform an operation. AnyOf == 0 means no
// capability is needed beyond the authentication requirement.
type Requirement struct {
	Authenticated bool
	AnyOf         Capability
}

// Policy is the authorization table. Row-level rules (ownership, assignment) are
// checked by the services on top of this table.
var Policy = map[Operation]Requirement{
	OpReadCatalog:        {},
	OpWriteCatalog:       {Authenticated: true, AnyOf: CapManager},
	OpSetFeatured:        {Authenticated: true, AnyOf: CapManager},
	OpListAllCarts:       {Authenticated: true, AnyOf: CapManager},
	OpUseCart:            {Authenticated: true},
	OpCreateOrder:        {Authenticated: true},
	OpReadOrders:         {Authenticated: true},
	OpAssignDeliveryCrew: {Authenticated: true, AnyOf: CapManager},
	OpMarkDelivered:      {Authenticated: true, AnyOf: CapDeliveryCrew},
	OpDeleteOrder:        {Authenticated: true, AnyOf: CapManager},
	OpPayOrder:           {Authenticated: true},
	OpReadReviews:        {},
	OpCreateReview:       {Authenticated: true},
	OpManageManagers:     {Authenticated: true, AnyOf: CapManager},
	OpManageDeliveryCrew: {Authenticated: true, AnyOf: CapDeliveryCrew},
}

var deniedMessages = map[Operation]string{
	OpSetFeatured:        "Only managers can change the 'featured' status.",
	OpAssignDeliveryCrew: "Only managers can assign a delivery crew.",
	OpMarkDelivered:      "Only delivery crew can mark an order delivered.",
}

// Authorize checks a against the requirement registered for op.
func Authorize(a Actor, op Operation) error {
	req, ok := Policy[op]
	if !ok {
		return apperr.Internal(fmt.Errorf("no access policy for operation %q", op))
	}
	if req.Authenticated && !a.Authenticated() {
		return RequireAuthenticated(a)
	}
	if req.AnyOf != 0 && !a.hasAny(req.AnyOf) {
		msg, ok := deniedMessages[op]
		if !ok {
			msg = "You do not have permission to perform this action."
		}
		return apperr.PermissionDenied(msg)
	}
	return nil
}

func (a Actor) hasAny(c Capability) bool {
	if a.Caps&CapAdmin != 0 {
		return true
	}
	return a.Caps&c != 0
}
