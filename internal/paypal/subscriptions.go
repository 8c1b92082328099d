package paypal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wondertwin-ai/twin-paypal/internal/store"
	pkgstore "github.com/wondertwin-ai/twin-paypal/pkg/store"
)

// Errors returned by ApproveSubscription.
var (
	ErrNotFound   = errors.New("subscription not found")
	ErrNotPending = errors.New("subscription is not pending approval")
)

const defaultQuantity store.Quantity = "1"

type createSubscriptionRequest struct {
	PlanID         *string         `json:"plan_id" validate:"required"`
	Quantity       store.Quantity  `json:"quantity"`
	PlanOverridden bool            `json:"plan_overridden"`
	CustomID       string          `json:"custom_id"`
	StartTime      string          `json:"start_time"`
	Subscriber     json.RawMessage `json:"subscriber"`
}

// subscriptionSummary is the minimal create response.
type subscriptionSummary struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	CreateTime string       `json:"create_time"`
	Links      []store.Link `json:"links"`
}

func (m *Mock) createSubscription(c *call) reply {
	var req createSubscriptionRequest
	if rep, ok := m.decodeCreate(c.bodyBytes(), &req); !ok {
		return rep
	}

	quantity := req.Quantity
	if quantity == "" {
		quantity = defaultQuantity
	}

	id := m.store.Subscriptions.NextID()
	href := m.resourceURL(subscriptionsPath + "/" + id)
	approve := "https://" + m.webHost() + "/webapps/billing/subscriptions?ba_token=BA-" + pkgstore.RandomHex(12)

	sub := store.Subscription{
		ID:             id,
		PlanID:         *req.PlanID,
		Quantity:       quantity,
		PlanOverridden: req.PlanOverridden,
		Status:         store.SubscriptionStatusApprovalPending,
		CustomID:       req.CustomID,
		StartTime:      req.StartTime,
		Subscriber:     req.Subscriber,
		CreateTime:     m.now(),
		Links: []store.Link{
			{Href: approve, Rel: "approve", Method: http.MethodGet},
			{Href: href, Rel: "edit", Method: http.MethodPatch},
			{Href: href, Rel: "self", Method: http.MethodPost},
		},
	}
	m.store.Subscriptions.Set(id, sub)

	m.notifier.Notify(EventSubscriptionCreated, ResourceSubscription, "A billing subscription has been created.", sub)

	if prefersRepresentation(c.req) {
		return jsonReply(http.StatusCreated, sub)
	}
	return jsonReply(http.StatusCreated, subscriptionSummary{
		ID:         sub.ID,
		Status:     sub.Status,
		CreateTime: sub.CreateTime,
		Links:      sub.Links,
	})
}

// ApproveSubscription simulates the buyer approving a pending subscription:
// its status becomes ACTIVE and an activation event is published.
func (m *Mock) ApproveSubscription(id string) (store.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var approved store.Subscription
	found, err := m.store.Subscriptions.Update(id, func(sub *store.Subscription) error {
		if sub.Status != store.SubscriptionStatusApprovalPending {
			return ErrNotPending
		}
		now := m.now()
		sub.Status = store.SubscriptionStatusActive
		sub.UpdateTime = now
		if sub.StartTime == "" {
			sub.StartTime = now
		}
		approved = *sub
		return nil
	})
	if !found {
		return store.Subscription{}, ErrNotFound
	}
	if err != nil {
		return store.Subscription{}, err
	}

	m.notifier.Notify(EventSubscriptionActivated, ResourceSubscription, "A billing subscription has been activated.", approved)
	return approved, nil
}
