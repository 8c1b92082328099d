package paypal

import (
	"net/http"
	"regexp"
	"slices"
)

// Resource patterns are unanchored: they match anywhere in the path.
var (
	productPattern      = regexp.MustCompile(`v1/catalogs/products/(PROD-[0-9a-zA-Z]+)`)
	planPattern         = regexp.MustCompile(`v1/billing/plans/(P-[0-9a-zA-Z]+)`)
	subscriptionPattern = regexp.MustCompile(`v1/billing/subscriptions/(I-[0-9a-zA-Z]+)`)
)

const (
	tokenPath         = "/v1/oauth2/token"
	productsPath      = "/v1/catalogs/products"
	plansPath         = "/v1/billing/plans"
	subscriptionsPath = "/v1/billing/subscriptions"
)

// route pairs a path matcher with its handler. The matcher returns the
// captured resource ID, if any.
type route struct {
	match func(path string) (string, bool)
	serve func(c *call) reply
}

func exact(p string) func(string) (string, bool) {
	return func(path string) (string, bool) {
		return "", path == p
	}
}

func pattern(re *regexp.Regexp) func(string) (string, bool) {
	return func(path string) (string, bool) {
		m := re.FindStringSubmatch(path)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// routeTable lists routes in priority order; the first match wins.
func (m *Mock) routeTable() []route {
	return []route{
		{exact(tokenPath), m.serveToken},
		{exact(productsPath), m.serveProducts},
		{pattern(productPattern), m.serveProduct},
		{exact(plansPath), m.servePlans},
		{pattern(planPattern), m.servePlan},
		{exact(subscriptionsPath), m.serveSubscriptions},
		{pattern(subscriptionPattern), m.serveSubscription},
	}
}

func (m *Mock) serveToken(c *call) reply {
	switch {
	case c.req.Method == http.MethodGet:
		return invalidToken()
	case !m.creds.validBasic(c.req):
		return failedAuthentication()
	case c.req.URL.RawQuery == "":
		return unsupportedGrantType()
	default:
		return m.issueToken()
	}
}

func (m *Mock) serveProducts(c *call) reply {
	switch c.req.Method {
	case http.MethodGet:
		if !authorized(c.req) {
			return failedAuthentication()
		}
		return m.listProducts(c)
	case http.MethodPost:
		if !authorized(c.req) {
			return failedAuthentication()
		}
		return m.createProduct(c)
	default:
		return empty(http.StatusNotFound)
	}
}

func (m *Mock) serveProduct(c *call) reply {
	switch c.req.Method {
	case http.MethodGet:
		product, ok := m.store.Products.Get(c.id)
		if !ok {
			return m.responses.resourceNotFound("product id")
		}
		return jsonReply(http.StatusOK, product)
	case http.MethodPatch:
		if !m.store.Products.Has(c.id) {
			return empty(http.StatusNotFound)
		}
		return m.patchProduct(c)
	default:
		return empty(http.StatusMethodNotAllowed)
	}
}

func (m *Mock) servePlans(c *call) reply {
	switch c.req.Method {
	case http.MethodGet:
		if !authorized(c.req) {
			return failedAuthentication()
		}
		return m.listPlans(c)
	case http.MethodPost:
		if !authorized(c.req) {
			return failedAuthentication()
		}
		return m.createPlan(c)
	default:
		return empty(http.StatusMethodNotAllowed)
	}
}

var planNotFoundMethods = []string{
	http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead, http.MethodOptions,
}

func (m *Mock) servePlan(c *call) reply {
	switch {
	case c.req.Method == http.MethodGet:
		plan, ok := m.store.Plans.Get(c.id)
		if !ok {
			return m.responses.resourceNotFound("planId")
		}
		return jsonReply(http.StatusOK, plan)
	case c.req.Method == http.MethodPatch:
		if !m.store.Plans.Has(c.id) {
			return m.responses.resourceNotFound("planId")
		}
		return m.patchPlan(c)
	case slices.Contains(planNotFoundMethods, c.req.Method):
		return empty(http.StatusNotFound)
	default:
		return empty(http.StatusMethodNotAllowed)
	}
}

func (m *Mock) serveSubscriptions(c *call) reply {
	if c.req.Method != http.MethodPost {
		return empty(http.StatusMethodNotAllowed)
	}
	if !authorized(c.req) {
		return failedAuthentication()
	}
	return m.createSubscription(c)
}

// serveSubscription only answers GET; every other method gets the default
// "Not found" response.
func (m *Mock) serveSubscription(c *call) reply {
	if c.req.Method != http.MethodGet {
		return notFound()
	}
	sub, ok := m.store.Subscriptions.Get(c.id)
	if !ok {
		return m.responses.resourceNotFound("")
	}
	return jsonReply(http.StatusOK, sub)
}
