package paypal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wondertwin-ai/twin-paypal/internal/store"
)

const defaultSetupFeeFailureAction = "CANCEL"

type createPlanRequest struct {
	ProductID          string                     `json:"product_id"`
	Name               *string                    `json:"name" validate:"required"`
	Description        string                     `json:"description"`
	Status             string                     `json:"status"`
	BillingCycles      json.RawMessage            `json:"billing_cycles"`
	PaymentPreferences *paymentPreferencesRequest `json:"payment_preferences" validate:"required"`
	Taxes              json.RawMessage            `json:"taxes"`
	QuantitySupported  bool                       `json:"quantity_supported"`
}

type paymentPreferencesRequest struct {
	AutoBillOutstanding     *bool        `json:"auto_bill_outstanding"`
	PaymentFailureThreshold int          `json:"payment_failure_threshold"`
	SetupFee                *store.Money `json:"setup_fee"`
	SetupFeeFailureAction   string       `json:"setup_fee_failure_action"`
}

func (r *paymentPreferencesRequest) preferences() store.PaymentPreferences {
	prefs := store.PaymentPreferences{
		AutoBillOutstanding:     true,
		PaymentFailureThreshold: r.PaymentFailureThreshold,
		SetupFee:                r.SetupFee,
		SetupFeeFailureAction:   r.SetupFeeFailureAction,
	}
	if r.AutoBillOutstanding != nil {
		prefs.AutoBillOutstanding = *r.AutoBillOutstanding
	}
	if prefs.SetupFeeFailureAction == "" {
		prefs.SetupFeeFailureAction = defaultSetupFeeFailureAction
	}
	return prefs
}

// planSummary is the minimal create response.
type planSummary struct {
	ID          string       `json:"id"`
	ProductID   string       `json:"product_id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status"`
	UsageType   string       `json:"usage_type"`
	CreateTime  string       `json:"create_time"`
	Links       []store.Link `json:"links"`
}

// listedPlan is a plan as it appears in list responses: no product_id and
// only the first link.
type listedPlan struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name"`
	Description        string                   `json:"description,omitempty"`
	Status             string                   `json:"status"`
	UsageType          string                   `json:"usage_type"`
	BillingCycles      json.RawMessage          `json:"billing_cycles,omitempty"`
	PaymentPreferences store.PaymentPreferences `json:"payment_preferences"`
	Taxes              json.RawMessage          `json:"taxes,omitempty"`
	QuantitySupported  bool                     `json:"quantity_supported"`
	CreateTime         string                   `json:"create_time"`
	UpdateTime         string                   `json:"update_time,omitempty"`
	Links              *store.Link              `json:"links,omitempty"`
}

type planList struct {
	Plans      []listedPlan `json:"plans"`
	TotalItems *int         `json:"total_items,omitempty"`
	TotalPages *int         `json:"total_pages,omitempty"`
	Links      []store.Link `json:"links"`
}

func planLinks(href string) []store.Link {
	return []store.Link{
		{Href: href, Rel: "self", Method: http.MethodGet, EncType: "application/json"},
		{Href: href, Rel: "edit", Method: http.MethodPatch, EncType: "application/json"},
		{Href: href, Rel: "self", Method: http.MethodPost, EncType: "application/json"},
	}
}

func (m *Mock) createPlan(c *call) reply {
	var req createPlanRequest
	if rep, ok := m.decodeCreate(c.bodyBytes(), &req); !ok {
		return rep
	}

	status := req.Status
	if status == "" {
		status = store.PlanStatusActive
	}

	id := m.store.Plans.NextID()
	plan := store.Plan{
		ID:                 id,
		ProductID:          req.ProductID,
		Name:               *req.Name,
		Description:        req.Description,
		Status:             status,
		UsageType:          store.UsageTypeLicensed,
		BillingCycles:      req.BillingCycles,
		PaymentPreferences: req.PaymentPreferences.preferences(),
		Taxes:              req.Taxes,
		QuantitySupported:  req.QuantitySupported,
		CreateTime:         m.now(),
		Links:              planLinks(m.resourceURL(plansPath + "/" + id)),
	}
	m.store.Plans.Set(id, plan)

	m.notifier.Notify(EventPlanCreated, ResourcePlan, "A billing plan has been created.", plan)

	if prefersRepresentation(c.req) {
		return jsonReply(http.StatusCreated, plan)
	}
	return jsonReply(http.StatusCreated, planSummary{
		ID:          plan.ID,
		ProductID:   plan.ProductID,
		Name:        plan.Name,
		Description: plan.Description,
		Status:      plan.Status,
		UsageType:   plan.UsageType,
		CreateTime:  plan.CreateTime,
		Links:       plan.Links,
	})
}

func (m *Mock) listPlans(c *call) reply {
	p := parsePaging(c.req)

	var match func(store.Plan) bool
	if productID := c.req.URL.Query().Get("product_id"); productID != "" {
		match = func(plan store.Plan) bool { return plan.ProductID == productID }
	}
	page := m.store.Plans.Paginate(p.page, p.size, match)

	list := planList{
		Plans: make([]listedPlan, 0, len(page.Data)),
		Links: m.listLinks(c.req, plansPath),
	}
	for _, plan := range page.Data {
		lp := listedPlan{
			ID:                 plan.ID,
			Name:               plan.Name,
			Description:        plan.Description,
			Status:             plan.Status,
			UsageType:          plan.UsageType,
			BillingCycles:      plan.BillingCycles,
			PaymentPreferences: plan.PaymentPreferences,
			Taxes:              plan.Taxes,
			QuantitySupported:  plan.QuantitySupported,
			CreateTime:         plan.CreateTime,
			UpdateTime:         plan.UpdateTime,
		}
		if len(plan.Links) > 0 {
			lp.Links = &plan.Links[0]
		}
		list.Plans = append(list.Plans, lp)
	}
	if p.totalRequired {
		list.TotalItems = &page.TotalItems
		list.TotalPages = &page.TotalPages
	}
	return jsonReply(http.StatusOK, list)
}

// patchPlan applies changes one at a time. The first rejected change ends
// the request; changes before it stay applied.
func (m *Mock) patchPlan(c *call) reply {
	changes, ok := decodeChanges(c.bodyBytes())
	if !ok {
		return m.responses.malformedRequestJSON("")
	}

	for i, change := range changes {
		_, err := m.store.Plans.Update(c.id, func(p *store.Plan) error {
			if err := ApplyPlanChange(p, i, change); err != nil {
				return err
			}
			p.UpdateTime = m.now()
			return nil
		})
		if err != nil {
			var perr *PatchError
			if errors.As(err, &perr) {
				return m.responses.patchError(perr)
			}
			return m.responses.malformedRequestJSON("")
		}
	}

	if plan, ok := m.store.Plans.Get(c.id); ok && len(changes) > 0 {
		m.notifier.Notify(EventPlanUpdated, ResourcePlan, "A billing plan has been updated.", plan)
	}
	return empty(http.StatusNoContent)
}
