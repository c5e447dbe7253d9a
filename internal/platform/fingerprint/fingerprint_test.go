package fingerprint

import (
	"encoding/json"
	"testing"
)

func TestCompute_KeyOrderIndependent(t *testing.T) {
	a := json.RawMessage(`{"firstName":"Anna","lastName":"Rossi","city":"Milano"}`)
	b := json.RawMessage(`{"city":"Milano","lastName":"Rossi","firstName":"Anna"}`)

	fa, err := Compute(a)
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	fb, err := Compute(b)
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if fa != fb { t.Errorf("digests differ for permuted keys: %s vs %s", fa, fb) }
}

func TestCompute_FieldValueChange(t *testing.T) {
	a := map[string]interface{}{"id": 1, "email": "anna@example.com"}
	b := map[string]interface{}{"id": 1, "email": "anna@example.org"}

	fa, _ := Compute(a)
	fb, _ := Compute(b)
	if fa == fb { t.Error("digests equal for different field values") }
}

func TestCompute_FieldPresenceChange(t *testing.T) {
	a := map[string]interface{}{"id": 1}
	b := map[string]interface{}{"id": 1, "email": nil}

	fa, _ := Compute(a)
	fb, _ := Compute(b)
	if fa == fb { t.Error("digests equal for present-vs-absent field") }
}

func TestCompute_NestedStability(t *testing.T) {
	a := json.RawMessage(`{"phoneNumbers":[{"prefix":"+39","number":"333"}],"id":7}`)
	b := json.RawMessage(`{"id":7,"phoneNumbers":[{"number":"333","prefix":"+39"}]}`)

	fa, _ := Compute(a)
	fb, _ := Compute(b)
	if fa != fb { t.Error("nested permutation changed digest") }
}

func TestCompute_Deterministic(t *testing.T) {
	v := map[string]interface{}{"id": 42, "state": "confirmed"}
	f1, _ := Compute(v)
	f2, _ := Compute(v)
	if f1 != f2 { t.Error("same value produced different digests") }
	if len(f1) != 64 { t.Errorf("expected 64 hex chars, got %d", len(f1)) }
}
