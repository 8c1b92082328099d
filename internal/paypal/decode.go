package paypal

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wondertwin-ai/twin-paypal/internal/store"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so error details cite the
// wire field.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeCreate fills dst from a create request body and checks its required
// fields. A body that is not a JSON object counts as an empty object.
func (m *Mock) decodeCreate(body []byte, dst any) (reply, bool) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' && json.Valid(body) {
		if err := json.Unmarshal(body, dst); err != nil {
			return m.responses.malformedRequestJSON(decodeErrorField(err)), false
		}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return m.responses.missingRequiredParameter(verrs[0].Field()), false
		}
		m.logger.Error("validate request", "err", err)
		return empty(http.StatusInternalServerError), false
	}
	return reply{}, true
}

// decodeErrorField returns the JSON pointer of the member that failed to
// decode, when the decoder names one.
func decodeErrorField(err error) string {
	var terr *json.UnmarshalTypeError
	if errors.As(err, &terr) && terr.Field != "" {
		return "/" + strings.ReplaceAll(terr.Field, ".", "/")
	}
	return ""
}

// prefersRepresentation reports whether the caller asked for the full
// resource in the create response.
func prefersRepresentation(req *http.Request) bool {
	for _, v := range req.Header.Values("Prefer") {
		if strings.Contains(strings.ToLower(v), "return=representation") {
			return true
		}
	}
	return false
}

// paging holds the list query parameters PayPal accepts.
type paging struct {
	page          int
	size          int
	totalRequired bool
}

// parsePaging reads page, page_size and total_required. Values that do not
// parse are ignored.
func parsePaging(req *http.Request) paging {
	q := req.URL.Query()
	var p paging
	if n, err := strconv.Atoi(q.Get("page_size")); err == nil && n > 0 {
		p.size = n
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.page = n
	}
	if b, err := strconv.ParseBool(q.Get("total_required")); err == nil {
		p.totalRequired = b
	}
	return p
}

// listLinks returns the self link for the list at path, echoing the query.
func (m *Mock) listLinks(req *http.Request, path string) []store.Link {
	href := m.resourceURL(path)
	if req.URL.RawQuery != "" {
		href += "?" + req.URL.RawQuery
	}
	return pageLinks(href)
}
