package helpers

import "testing"

func TestPtrOf(t *testing.T) {
	t.Parallel()

	i := PtrOf(42)
	if i == nil || *i != 42 {
		t.Errorf("Expected *int 42, got %v", i)
	}

	s := PtrOf("hello")
	if s == nil || *s != "hello" {
		t.Errorf("Expected *string hello, got %v", s)
	}

	b := PtrOf(false)
	if b == nil || *b {
		t.Errorf("Expected *bool false, got %v", b)
	}
}
