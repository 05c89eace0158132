package security

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestRedactedHash_NeverSerializesTheHash(t *testing.T) {
	h := testHasher("server-secret")
	encoded, err := h.Hash("p1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	r := NewRedactedHash(encoded)

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != "null" {
		t.Errorf("Marshal = %s, want null", b)
	}
	for _, rendered := range []string{fmt.Sprint(r), fmt.Sprintf("%v", r), fmt.Sprintf("%#v", r)} {
		if strings.Contains(rendered, encoded) {
			t.Errorf("rendered value %q leaks the hash", rendered)
		}
	}
}

func TestRedactedHash_VerifyIsTheOnlyAccessor(t *testing.T) {
	h := testHasher("server-secret")
	encoded, err := h.Hash("p1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	r := NewRedactedHash(encoded)
	if err := r.Verify(h, "p1"); err != nil {
		t.Errorf("Verify matching password: %v", err)
	}
	if err := r.Verify(h, "p2"); err == nil {
		t.Error("Verify wrong password should fail")
	}
}
