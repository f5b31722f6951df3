package types

import "time"

// TMF641 service-order wire format, as consumed by the provisioning
// platform. Field names follow the external contract, not Go convention.

// ItemAction is the action requested for one order item.
type ItemAction string

const (
	ActionAdd      ItemAction = "add"
	ActionModify   ItemAction = "modify"
	ActionDelete   ItemAction = "delete"
	ActionNoChange ItemAction = "noChange"
)

// Valid reports whether the action is one the wire format accepts.
func (a ItemAction) Valid() bool {
	switch a {
	case ActionAdd, ActionModify, ActionDelete, ActionNoChange:
		return true
	}
	return false
}

// OrderState is the lifecycle state of an order or order item.
type OrderState string

const (
	StateAcknowledged OrderState = "acknowledged"
	StateRejected     OrderState = "rejected"
	StatePending      OrderState = "pending"
	StateHeld         OrderState = "held"
	StateInProgress   OrderState = "inProgress"
	StateCancelled    OrderState = "cancelled"
	StateCompleted    OrderState = "completed"
	StateFailed       OrderState = "failed"
)

// SpecificationRef points at a ServiceSpecification in the external catalog.
type SpecificationRef struct {
	ID   string `json:"id"`
	Href string `json:"href,omitempty"`
	Name string `json:"name,omitempty"`
}

// Characteristic is one typed name/value attribute of an ordered service.
type Characteristic struct {
	Name      string `json:"name"`
	Value     Value  `json:"value"`
	ValueType string `json:"valueType,omitempty"`
}

// OrderedService is the service payload of an order item.
type OrderedService struct {
	Name                 string           `json:"name,omitempty"`
	ServiceType          string           `json:"serviceType,omitempty"`
	ServiceSpecification SpecificationRef `json:"serviceSpecification"`
	ServiceCharacteristic []Characteristic `json:"serviceCharacteristic,omitempty"`
}

// OrderItem is one line item of a service order.
type OrderItem struct {
	ID      string         `json:"id"`
	Action  ItemAction     `json:"action"`
	State   OrderState     `json:"state,omitempty"`
	Service OrderedService `json:"service"`
}

// RelatedParty identifies a stakeholder on the order.
type RelatedParty struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// ServiceOrder is the TMF641 order document submitted for provisioning.
// ExternalID carries the intent_id for correlation.
type ServiceOrder struct {
	ID                      string         `json:"id,omitempty"`
	ExternalID              string         `json:"externalId,omitempty"`
	Description             string         `json:"description,omitempty"`
	Priority                string         `json:"priority,omitempty"`
	State                   OrderState     `json:"state,omitempty"`
	OrderDate               *time.Time     `json:"orderDate,omitempty"`
	RequestedStartDate      *time.Time     `json:"requestedStartDate,omitempty"`
	RequestedCompletionDate *time.Time     `json:"requestedCompletionDate,omitempty"`
	ServiceOrderItem        []OrderItem    `json:"serviceOrderItem"`
	RelatedParty            []RelatedParty `json:"relatedParty,omitempty"`
}
