/**
 * @description
 * This file implements the payload extractor: a pure, ordered set of strategies
 * that search an arbitrary engine response for a monetary figure. The engine is
 * schema-inconsistent across workflow versions, so the extractor first selects
 * a candidate "result object" from one of the known envelope fields, then
 * searches the candidate for a balance-shaped value. First success wins; a
 * JSON-parse failure on one candidate never aborts the whole search.
 *
 * Balances are returned as decimal strings. Inputs decoded via
 * workflowclient.DecodeJSON carry numbers as json.Number, so the exact decimal
 * text the engine sent survives extraction.
 *
 * @dependencies
 * - encoding/json, strconv, strings: Standard Go libraries.
 */

package app

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fondeo/balance-service/pkg/workflowclient"
)

// resultSelector picks a candidate result object out of the outer payload.
type resultSelector struct {
	name string
	pick func(payload any) (any, bool)
}

// resultSelectors is the strict envelope priority order. Earlier entries
// correspond to newer workflow revisions; the tail keeps legacy shapes alive.
var resultSelectors = []resultSelector{
	{"outputs_first", selectOutputsFirst},
	{"data", selectField("data")},
	{"return_value", selectParsedField("return_value")},
	{"workflow_run_data", selectWorkflowRunData},
	{"result", selectParsedField("result")},
	{"nested_data", selectNestedData},
	{"execution_result", selectParsedField("execution_result")},
}

// ExtractBalance searches a decoded engine payload for a monetary value.
// It returns the balance as a decimal string, or false when no strategy
// recognizes anything monetary — a distinct business outcome from the engine's
// own "no data" answer.
func ExtractBalance(payload any) (string, bool) {
	if payload == nil {
		return "", false
	}
	for _, sel := range resultSelectors {
		candidate, ok := sel.pick(payload)
		if !ok || candidate == nil {
			continue
		}
		if balance, ok := balanceFromCandidate(candidate); ok {
			return balance, true
		}
	}
	return "", false
}

// balanceFromCandidate searches one chosen result object, in strict order, for
// a monetary value.
func balanceFromCandidate(candidate any) (string, bool) {
	// Array of objects: the first element's balance field.
	if arr, ok := candidate.([]any); ok && len(arr) > 0 {
		if obj, ok := arr[0].(map[string]any); ok {
			if v, ok := monetaryString(obj["balance"]); ok {
				return v, true
			}
		}
	}

	if obj, ok := candidate.(map[string]any); ok {
		for _, field := range []string{"balance", "data", "amount", "total"} {
			if v, ok := monetaryString(obj[field]); ok {
				return v, true
			}
		}
		return "", false
	}

	// The candidate may already be the bare value.
	return monetaryString(candidate)
}

// monetaryString converts a scalar JSON value into a decimal string. Strings
// must parse as a float to qualify; objects and arrays never do.
func monetaryString(v any) (string, bool) {
	switch val := v.(type) {
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return "", false
		}
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "", false
		}
		return trimmed, true
	}
	return "", false
}

func selectOutputsFirst(payload any) (any, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	outputs, ok := obj["outputs"].([]any)
	if !ok || len(outputs) == 0 {
		return nil, false
	}
	return parseIfString(outputs[0]), true
}

// selectField returns the named top-level field as-is.
func selectField(name string) func(any) (any, bool) {
	return func(payload any) (any, bool) {
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := obj[name]
		return v, ok && v != nil
	}
}

// selectParsedField returns the named top-level field, JSON-parsing it first
// when it is a string. An unparseable string falls through untouched so the
// float-parseable-string rule can still claim it.
func selectParsedField(name string) func(any) (any, bool) {
	return func(payload any) (any, bool) {
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := obj[name]
		if !ok || v == nil {
			return nil, false
		}
		return parseIfString(v), true
	}
}

func selectWorkflowRunData(payload any) (any, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	run, ok := obj["workflow_run"].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := run["data"]
	return v, ok && v != nil
}

// selectNestedData covers the legacy envelope that wrapped the result object
// one level deeper, as data.data.
func selectNestedData(payload any) (any, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	inner, ok := obj["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := inner["data"]
	return v, ok && v != nil
}

// parseIfString JSON-parses string values; parse failures are swallowed and
// the original string is returned unchanged.
func parseIfString(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	parsed, err := workflowclient.DecodeJSON([]byte(s))
	if err != nil {
		return v
	}
	return parsed
}
