package paypal

// Webhook event types published by the mock.
const (
	EventProductCreated        = "CATALOG.PRODUCT.CREATED"
	EventProductUpdated        = "CATALOG.PRODUCT.UPDATED"
	EventPlanCreated           = "BILLING.PLAN.CREATED"
	EventPlanUpdated           = "BILLING.PLAN.UPDATED"
	EventSubscriptionCreated   = "BILLING.SUBSCRIPTION.CREATED"
	EventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
)

// Resource types carried in webhook events.
const (
	ResourceProduct      = "product"
	ResourcePlan         = "plan"
	ResourceSubscription = "subscription"
)

// Notifier receives an event for every state change. Implementations must not
// call back into the Mock.
type Notifier interface {
	Notify(eventType, resourceType, summary string, resource any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, string, any) {}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(eventType, resourceType, summary string, resource any)

// Notify implements Notifier.
func (f NotifierFunc) Notify(eventType, resourceType, summary string, resource any) {
	f(eventType, resourceType, summary, resource)
}
