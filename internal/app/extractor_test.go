package app

import (
	"testing"

	"github.com/fondeo/balance-service/pkg/workflowclient"
)

func decodePayload(t *testing.T, raw string) any {
	t.Helper()
	payload, err := workflowclient.DecodeJSON([]byte(raw))
	if err != nil {
		t.Fatalf("fixture unparseable: %v", err)
	}
	return payload
}

func TestExtractBalance_DataArrayWithBalance(t *testing.T) {
	payload := decodePayload(t, `{"data":[{"email":"a@b.com","balance":"33678.55"}]}`)

	balance, ok := ExtractBalance(payload)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if balance != "33678.55" {
		t.Fatalf("expected balance 33678.55, got %q", balance)
	}
}

func TestExtractBalance_ShapeVariantsYieldIdenticalString(t *testing.T) {
	variants := map[string]string{
		"bare_object":      `{"data":{"balance":"120.50"}}`,
		"array_element":    `{"data":[{"balance":"120.50"}]}`,
		"encoded_string":   `{"return_value":"{\"balance\":\"120.50\"}"}`,
		"outputs_first":    `{"outputs":[{"balance":"120.50"}]}`,
		"workflow_run":     `{"workflow_run":{"data":{"balance":"120.50"}}}`,
		"result_field":     `{"result":{"balance":"120.50"}}`,
		"nested_data":      `{"data":{"data":{"balance":"120.50"}}}`,
		"execution_result": `{"execution_result":"{\"balance\":\"120.50\"}"}`,
	}

	for name, raw := range variants {
		balance, ok := ExtractBalance(decodePayload(t, raw))
		if !ok {
			t.Fatalf("%s: expected extraction to succeed", name)
		}
		if balance != "120.50" {
			t.Fatalf("%s: expected balance 120.50, got %q", name, balance)
		}
	}
}

func TestExtractBalance_NumericValueKeepsDecimalText(t *testing.T) {
	payload := decodePayload(t, `{"data":{"balance":1250.40}}`)

	balance, ok := ExtractBalance(payload)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if balance != "1250.40" {
		t.Fatalf("expected balance text preserved as 1250.40, got %q", balance)
	}
}

func TestExtractBalance_FallbackFields(t *testing.T) {
	cases := map[string]string{
		`{"data":{"amount":"75.00"}}`: "75.00",
		`{"data":{"total":"80.25"}}`:  "80.25",
		`{"data":{"data":"42.10"}}`:   "42.10",
		`{"result":"987.65"}`:         "987.65",
		`{"outputs":[66.6]}`:          "66.6",
	}
	for raw, want := range cases {
		balance, ok := ExtractBalance(decodePayload(t, raw))
		if !ok {
			t.Fatalf("%s: expected extraction to succeed", raw)
		}
		if balance != want {
			t.Fatalf("%s: expected %q, got %q", raw, want, balance)
		}
	}
}

func TestExtractBalance_BalanceFieldWinsOverLaterRules(t *testing.T) {
	payload := decodePayload(t, `{"data":{"balance":"10.00","amount":"99.99","total":"50.00"}}`)

	balance, ok := ExtractBalance(payload)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if balance != "10.00" {
		t.Fatalf("expected balance field to win, got %q", balance)
	}
}

func TestExtractBalance_BadCandidateFallsThrough(t *testing.T) {
	// outputs[0] is a string that is neither JSON nor a float; the data field
	// must still be reached.
	payload := decodePayload(t, `{"outputs":["not json at all"],"data":{"balance":"5.00"}}`)

	balance, ok := ExtractBalance(payload)
	if !ok {
		t.Fatal("expected extraction to fall through to data")
	}
	if balance != "5.00" {
		t.Fatalf("expected 5.00, got %q", balance)
	}
}

func TestExtractBalance_MissReturnsNotFound(t *testing.T) {
	for _, raw := range []string{
		`{"data":{"email":"a@b.com"}}`,
		`{"message":"all good"}`,
		`{}`,
		`[]`,
	} {
		if balance, ok := ExtractBalance(decodePayload(t, raw)); ok {
			t.Fatalf("%s: expected miss, got %q", raw, balance)
		}
	}
}

func TestExtractBalance_NilPayload(t *testing.T) {
	if _, ok := ExtractBalance(nil); ok {
		t.Fatal("expected miss for nil payload")
	}
}
