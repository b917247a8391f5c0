package services

import (
	"strings"
	"testing"

	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
)

func TestParseIdentityMode(t *testing.T) {
	cases := map[string]IdentityMode{
		"":        IdentityModeCounter,
		"counter": IdentityModeCounter,
		"content": IdentityModeContent,
		"CONTENT": IdentityModeContent,
		" counter ": IdentityModeCounter,
	}
	for raw, want := range cases {
		got, err := ParseIdentityMode(raw)
		if err != nil {
			t.Fatalf("parse %q failed: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q = %q, want %q", raw, got, want)
		}
	}

	if _, err := ParseIdentityMode("hybrid"); err != domainerrors.ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for unknown mode, got %v", err)
	}
}

func TestContentKeyIsStableAndCollisionFree(t *testing.T) {
	first, err := ContentKey("uid-0001")
	if err != nil {
		t.Fatalf("content key failed: %v", err)
	}
	second, err := ContentKey("uid-0001")
	if err != nil {
		t.Fatalf("content key failed: %v", err)
	}
	if first != second {
		t.Fatalf("same uid produced different keys: %s vs %s", first, second)
	}
	if !strings.HasPrefix(first, "b") {
		t.Fatalf("expected base32 cidv1 string, got %s", first)
	}

	other, err := ContentKey("uid-0002")
	if err != nil {
		t.Fatalf("content key failed: %v", err)
	}
	if other == first {
		t.Fatalf("different uids produced the same key")
	}
}

func TestContentKeyRejectsBlankUID(t *testing.T) {
	if _, err := ContentKey("   "); err != domainerrors.ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for blank uid, got %v", err)
	}
}
