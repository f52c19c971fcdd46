package go_loco

import (
	"errors"
	"testing"
)

func TestDocumentSetPreservesOrder(t *testing.T) {
	doc := NewDocument().
		SetString("os", "mac").
		SetInt32("ntype", 0).
		SetString("appVer", "4.5.0")

	want := []string{"os", "ntype", "appVer"}
	got := doc.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Replacing a value keeps the key's original position.
	doc.SetString("os", "win32")
	if doc.Keys()[0] != "os" {
		t.Errorf("replaced key moved to position %v", doc.Keys())
	}
	if v, _ := doc.GetString("os"); v != "win32" {
		t.Errorf("GetString(os) = %q after replace, want win32", v)
	}
	if doc.Len() != 3 {
		t.Errorf("Len() = %d after replace, want 3", doc.Len())
	}
}

func TestDocumentSetRejectsUnsupportedKind(t *testing.T) {
	doc := NewDocument()
	if err := doc.Set("bad", uint64(1)); !errors.Is(err, ErrInvalidValueKind) {
		t.Errorf("Set(uint64) = %v, want ErrInvalidValueKind", err)
	}
	if err := doc.Set("bad", []interface{}{int32(1), struct{}{}}); !errors.Is(err, ErrInvalidValueKind) {
		t.Errorf("Set(array with struct) = %v, want ErrInvalidValueKind", err)
	}
	if doc.Has("bad") {
		t.Error("rejected key was stored")
	}
}

func TestDocumentGetInt64CoercesInt32(t *testing.T) {
	doc := NewDocument().SetInt32("port", 5223)
	v, ok := doc.GetInt64("port")
	if !ok || v != 5223 {
		t.Errorf("GetInt64 over int32 = %d, %v; want 5223, true", v, ok)
	}
	// No coercion the other way.
	doc.SetInt64("wide", 1)
	if _, ok := doc.GetInt32("wide"); ok {
		t.Error("GetInt32 coerced an int64 value")
	}
}

func TestDocumentNull(t *testing.T) {
	doc := NewDocument().SetNull("extra")
	if !doc.IsNull("extra") {
		t.Error("IsNull(extra) = false")
	}
	if doc.IsNull("absent") {
		t.Error("IsNull(absent) = true")
	}
}

func TestDocumentEqual(t *testing.T) {
	build := func() *Document {
		return NewDocument().
			SetString("host", "example.com").
			SetInt32("port", 5223).
			SetBinary("blob", []byte{1, 2, 3}).
			SetArray("list", []interface{}{"a", int64(2)}).
			SetDocument("sub", NewDocument().SetBool("flag", true))
	}
	if !build().Equal(build()) {
		t.Error("identical documents not Equal")
	}

	other := build()
	other.SetInt32("port", 443)
	if build().Equal(other) {
		t.Error("documents with different values are Equal")
	}

	// Same content, different key order.
	reordered := NewDocument().SetInt32("port", 5223).SetString("host", "example.com")
	base := NewDocument().SetString("host", "example.com").SetInt32("port", 5223)
	if base.Equal(reordered) {
		t.Error("documents with different key order are Equal")
	}
}
