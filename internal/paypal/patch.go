package paypal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/wondertwin-ai/twin-paypal/internal/store"
)

// Change is one entry of a JSON-Patch style request body.
type Change struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// PatchErrorKind classifies a rejected change.
type PatchErrorKind int

const (
	PatchMalformed PatchErrorKind = iota
	PatchUnsupportedOp
	PatchInvalidPath
	PatchCurrencyMismatch
	PatchInvalidValue
)

// PatchError reports the change at Index that stopped a plan patch.
type PatchError struct {
	Kind  PatchErrorKind
	Index int
	Op    string
	Path  string
	Err   error
}

func (e *PatchError) Error() string {
	switch e.Kind {
	case PatchUnsupportedOp:
		return fmt.Sprintf("change %d: unsupported op %q", e.Index, e.Op)
	case PatchInvalidPath:
		return fmt.Sprintf("change %d: path %q cannot be patched", e.Index, e.Path)
	case PatchCurrencyMismatch:
		return fmt.Sprintf("change %d: setup fee currency cannot change", e.Index)
	case PatchInvalidValue:
		return fmt.Sprintf("change %d: invalid value for %s: %v", e.Index, e.Path, e.Err)
	default:
		return fmt.Sprintf("change %d: malformed op %q", e.Index, e.Op)
	}
}

func (e *PatchError) Unwrap() error { return e.Err }

// Status returns the HTTP status the rejection maps to.
func (e *PatchError) Status() int {
	switch e.Kind {
	case PatchUnsupportedOp, PatchCurrencyMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// field is the JSON pointer of member within the offending change.
func (e *PatchError) field(member string) string {
	return fmt.Sprintf("/%d/%s", e.Index, member)
}

// Ops PayPal recognises but does not allow on plans.
var unsupportedPlanOps = map[string]bool{
	"add": true, "remove": true, "copy": true, "move": true, "test": true,
}

// Plan paths that accept a replace.
const (
	planPathDescription             = "/description"
	planPathAutoBillOutstanding     = "/payment_preferences/auto_bill_outstanding"
	planPathPaymentFailureThreshold = "/payment_preferences/payment_failure_threshold"
	planPathSetupFee                = "/payment_preferences/setup_fee"
	planPathSetupFeeFailureAction   = "/payment_preferences/setup_fee_failure_action"
)

// ApplyPlanChange validates change i and applies it to p. On error p is
// unchanged.
func ApplyPlanChange(p *store.Plan, i int, c Change) error {
	if c.Op != "replace" {
		if unsupportedPlanOps[c.Op] {
			return &PatchError{Kind: PatchUnsupportedOp, Index: i, Op: c.Op, Path: c.Path}
		}
		return &PatchError{Kind: PatchMalformed, Index: i, Op: c.Op, Path: c.Path}
	}

	invalid := func(err error) error {
		return &PatchError{Kind: PatchInvalidValue, Index: i, Op: c.Op, Path: c.Path, Err: err}
	}

	prefs := &p.PaymentPreferences
	switch c.Path {
	case planPathDescription:
		var v string
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return invalid(err)
		}
		p.Description = v
	case planPathAutoBillOutstanding:
		var v bool
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return invalid(err)
		}
		prefs.AutoBillOutstanding = v
	case planPathPaymentFailureThreshold:
		var v int
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return invalid(err)
		}
		prefs.PaymentFailureThreshold = v
	case planPathSetupFee:
		var v store.Money
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return invalid(err)
		}
		if v.CurrencyCode != prefs.SetupFeeCurrency() {
			return &PatchError{Kind: PatchCurrencyMismatch, Index: i, Op: c.Op, Path: c.Path}
		}
		prefs.SetupFee = &v
	case planPathSetupFeeFailureAction:
		var v string
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return invalid(err)
		}
		prefs.SetupFeeFailureAction = v
	default:
		return &PatchError{Kind: PatchInvalidPath, Index: i, Op: c.Op, Path: c.Path}
	}
	return nil
}

// productFields maps patch field names onto product members.
var productFields = map[string]func(p *store.Product) *string{
	"name":        func(p *store.Product) *string { return &p.Name },
	"description": func(p *store.Product) *string { return &p.Description },
	"type":        func(p *store.Product) *string { return &p.Type },
	"category":    func(p *store.Product) *string { return &p.Category },
	"image_url":   func(p *store.Product) *string { return &p.ImageURL },
	"home_url":    func(p *store.Product) *string { return &p.HomeURL },
}

// ApplyProductPatch applies changes to p and reports whether any applied.
// Unknown ops and fields are skipped.
func ApplyProductPatch(p *store.Product, changes []Change) bool {
	changed := false
	for _, c := range changes {
		get, ok := productFields[strings.ReplaceAll(c.Path, "/", "")]
		if !ok {
			continue
		}
		field := get(p)
		switch c.Op {
		case "add":
			*field += patchText(c.Value)
		case "replace":
			*field = patchText(c.Value)
		case "remove":
			*field = ""
		default:
			continue
		}
		changed = true
	}
	return changed
}

// patchText renders a patch value as a string. Non-string JSON keeps its
// literal text.
func patchText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// decodeChanges parses a patch body. ok is false when the body is not a JSON
// array of changes.
func decodeChanges(body []byte) ([]Change, bool) {
	var changes []Change
	if err := json.Unmarshal(body, &changes); err != nil {
		return nil, false
	}
	return changes, true
}
