package paypal

import (
	"encoding/json"
	"net/http"

	"github.com/wondertwin-ai/twin-paypal/internal/store"
	pkgstore "github.com/wondertwin-ai/twin-paypal/pkg/store"
)

// REST error names.
const (
	errNameResourceNotFound    = "RESOURCE_NOT_FOUND"
	errNameInvalidRequest      = "INVALID_REQUEST"
	errNameUnprocessableEntity = "UNPROCESSABLE_ENTITY"
)

// Detail issues.
const (
	IssueInvalidResourceID         = "INVALID_RESOURCE_ID"
	IssueMissingRequiredParameter  = "MISSING_REQUIRED_PARAMETER"
	IssueMalformedRequestJSON      = "MALFORMED_REQUEST_JSON"
	IssueInvalidPatchPath          = "INVALID_PATCH_PATH"
	IssueUnsupportedPatchOperation = "UNSUPPORTED_PATCH_OPERATION"
	IssueCurrencyMismatch          = "CURRENCY_MISMATCH"
)

const docsBase = "https://developer.paypal.com/docs/api/v1/billing/subscriptions#"

const (
	msgInvalidRequest      = "Request is not well-formed, syntactically incorrect, or violates schema."
	msgResourceNotFound    = "The specified resource does not exist."
	msgUnprocessableEntity = "The requested action could not be performed, semantically incorrect, or failed business validation."
)

// ErrorDetail is one entry of a REST error's details array.
type ErrorDetail struct {
	Field       string `json:"field,omitempty"`
	Value       string `json:"value,omitempty"`
	Location    string `json:"location,omitempty"`
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

// ErrorResponse is the PayPal REST error body.
type ErrorResponse struct {
	Name    string        `json:"name"`
	Message string        `json:"message"`
	DebugID string        `json:"debug_id"`
	Details []ErrorDetail `json:"details,omitempty"`
	Links   []store.Link  `json:"links"`
}

// OAuthError is the error body used by the token endpoint.
type OAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// responses builds REST error payloads; debug IDs come from debugIDs.
type responses struct {
	debugIDs pkgstore.IDGenerator
}

func (rb responses) restError(status int, name, message string, details ...ErrorDetail) reply {
	return jsonReply(status, ErrorResponse{
		Name:    name,
		Message: message,
		DebugID: rb.debugIDs.NewID(),
		Details: details,
		Links: []store.Link{{
			Href:   docsBase + name,
			Rel:    "information_link",
			Method: http.MethodGet,
		}},
	})
}

func (rb responses) resourceNotFound(field string) reply {
	return rb.restError(http.StatusNotFound, errNameResourceNotFound, msgResourceNotFound, ErrorDetail{
		Field:       field,
		Location:    "path",
		Issue:       IssueInvalidResourceID,
		Description: "Specified resource ID does not exist. Please check the resource ID and try again.",
	})
}

func (rb responses) missingRequiredParameter(field string) reply {
	return rb.restError(http.StatusBadRequest, errNameInvalidRequest, msgInvalidRequest, ErrorDetail{
		Field:       "/" + field,
		Location:    "body",
		Issue:       IssueMissingRequiredParameter,
		Description: "A required field / parameter is missing.",
	})
}

func (rb responses) malformedRequestJSON(field string) reply {
	return rb.restError(http.StatusBadRequest, errNameInvalidRequest, msgInvalidRequest, ErrorDetail{
		Field:       field,
		Location:    "body",
		Issue:       IssueMalformedRequestJSON,
		Description: "The request JSON is not well formed.",
	})
}

func (rb responses) invalidPatchPath(field, path string) reply {
	return rb.restError(http.StatusBadRequest, errNameInvalidRequest, msgInvalidRequest, ErrorDetail{
		Field:       field,
		Value:       path,
		Location:    "body",
		Issue:       IssueInvalidPatchPath,
		Description: "The specified field cannot be patched.",
	})
}

func (rb responses) unsupportedPatchOperation(field, op string) reply {
	return rb.restError(http.StatusUnprocessableEntity, errNameUnprocessableEntity, msgUnprocessableEntity, ErrorDetail{
		Field:       field,
		Value:       op,
		Location:    "body",
		Issue:       IssueUnsupportedPatchOperation,
		Description: "Operation '" + op + "' is not supported.",
	})
}

func (rb responses) currencyMismatch(field string) reply {
	return rb.restError(http.StatusUnprocessableEntity, errNameUnprocessableEntity, msgUnprocessableEntity, ErrorDetail{
		Field:       field,
		Location:    "body",
		Issue:       IssueCurrencyMismatch,
		Description: "The currency code is different from the plan's currency code.",
	})
}

// patchError renders a rejected plan change.
func (rb responses) patchError(err *PatchError) reply {
	switch err.Kind {
	case PatchUnsupportedOp:
		return rb.unsupportedPatchOperation(err.field("op"), err.Op)
	case PatchInvalidPath:
		return rb.invalidPatchPath(err.field("path"), err.Path)
	case PatchCurrencyMismatch:
		return rb.currencyMismatch(err.field("value/currency_code"))
	case PatchInvalidValue:
		return rb.malformedRequestJSON(err.field("value"))
	default:
		return rb.malformedRequestJSON(err.field("op"))
	}
}

func invalidToken() reply {
	return jsonReply(http.StatusUnauthorized, OAuthError{
		Error:       "invalid_token",
		Description: "Token signature verification failed",
	})
}

func failedAuthentication() reply {
	return jsonReply(http.StatusUnauthorized, OAuthError{
		Error:       "invalid_client",
		Description: "Client Authentication failed",
	})
}

func unsupportedGrantType() reply {
	return jsonReply(http.StatusUnauthorized, OAuthError{
		Error:       "unsupported_grant_type",
		Description: "Grant Type is NULL",
	})
}

// notFound is the default answer for anything the route table does not handle.
func notFound() reply {
	return jsonReply(http.StatusBadRequest, "Not found")
}

func empty(status int) reply {
	return reply{status: status}
}

func jsonReply(status int, v any) reply {
	data, err := json.Marshal(v)
	if err != nil {
		return reply{status: http.StatusInternalServerError}
	}
	return reply{status: status, body: data}
}

// Link builders.

func selfLink(href string) store.Link {
	return store.Link{Href: href, Rel: "self", Method: http.MethodGet}
}

func editLink(href string) store.Link {
	return store.Link{Href: href, Rel: "edit", Method: http.MethodPatch}
}

// pageLinks returns the self link for a list endpoint.
func pageLinks(href string) []store.Link {
	return []store.Link{{Href: href, Rel: "self", Method: http.MethodGet}}
}
