// Package store defines the PayPal twin's state types and in-memory store.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Product types accepted by the catalog API.
const (
	ProductTypePhysical = "PHYSICAL"
	ProductTypeDigital  = "DIGITAL"
	ProductTypeService  = "SERVICE"
)

// Plan statuses.
const (
	PlanStatusCreated  = "CREATED"
	PlanStatusActive   = "ACTIVE"
	PlanStatusInactive = "INACTIVE"
)

// Subscription statuses.
const (
	SubscriptionStatusApprovalPending = "APPROVAL_PENDING"
	SubscriptionStatusActive          = "ACTIVE"
)

// UsageTypeLicensed is the only usage type the twin issues.
const UsageTypeLicensed = "LICENSED"

// Link is a HATEOAS link attached to PayPal resources.
type Link struct {
	Href    string `json:"href"`
	Rel     string `json:"rel"`
	Method  string `json:"method"`
	EncType string `json:"encType,omitempty"`
}

// Product is a catalog product. A field cleared by a patch "remove" is
// omitted from the JSON, name included.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Category    string `json:"category,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	HomeURL     string `json:"home_url,omitempty"`
	CreateTime  string `json:"create_time"`
	UpdateTime  string `json:"update_time"`
	Links       []Link `json:"links"`
}

// Money is a currency amount. Value is a decimal string, as PayPal sends it.
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// PaymentPreferences holds a plan's billing behaviour.
type PaymentPreferences struct {
	AutoBillOutstanding     bool   `json:"auto_bill_outstanding"`
	PaymentFailureThreshold int    `json:"payment_failure_threshold"`
	SetupFee                *Money `json:"setup_fee,omitempty"`
	SetupFeeFailureAction   string `json:"setup_fee_failure_action,omitempty"`
}

// SetupFeeCurrency returns the stored setup fee currency, or "" when no fee is set.
func (p PaymentPreferences) SetupFeeCurrency() string {
	if p.SetupFee == nil {
		return ""
	}
	return p.SetupFee.CurrencyCode
}

// Plan is a billing plan. BillingCycles and Taxes are kept as posted.
type Plan struct {
	ID                 string             `json:"id"`
	ProductID          string             `json:"product_id,omitempty"`
	Name               string             `json:"name"`
	Description        string             `json:"description,omitempty"`
	Status             string             `json:"status"`
	UsageType          string             `json:"usage_type"`
	BillingCycles      json.RawMessage    `json:"billing_cycles,omitempty"`
	PaymentPreferences PaymentPreferences `json:"payment_preferences"`
	Taxes              json.RawMessage    `json:"taxes,omitempty"`
	QuantitySupported  bool               `json:"quantity_supported"`
	CreateTime         string             `json:"create_time"`
	UpdateTime         string             `json:"update_time,omitempty"`
	Links              []Link             `json:"links"`
}

// Subscription is a billing subscription.
type Subscription struct {
	ID             string          `json:"id"`
	PlanID         string          `json:"plan_id"`
	Quantity       Quantity        `json:"quantity"`
	PlanOverridden bool            `json:"plan_overridden"`
	Status         string          `json:"status"`
	CustomID       string          `json:"custom_id,omitempty"`
	StartTime      string          `json:"start_time,omitempty"`
	Subscriber     json.RawMessage `json:"subscriber,omitempty"`
	CreateTime     string          `json:"create_time"`
	UpdateTime     string          `json:"update_time,omitempty"`
	Links          []Link          `json:"links"`
}

// Quantity is a subscription quantity. PayPal renders it as a string but
// clients commonly send a number, so both are accepted.
type Quantity string

// UnmarshalJSON accepts a JSON string or number.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quantity must be a string or number: %w", err)
	}
	*q = Quantity(n.String())
	return nil
}

// Int returns the numeric quantity, or 0 when it is not an integer.
func (q Quantity) Int() int {
	n, err := strconv.Atoi(string(q))
	if err != nil {
		return 0
	}
	return n
}
