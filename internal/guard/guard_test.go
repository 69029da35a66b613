package guard

import (
	"errors"
	"testing"

	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/hostfs"
)

func TestAuthorize(t *testing.T) {
	h := &db.Host{ID: "h1", UserID: "owner"}
	if err := Authorize("owner", h); err != nil {
		t.Fatalf("owner denied: %v", err)
	}
	for _, caller := range []string{"intruder", ""} {
		if err := Authorize(caller, h); !errors.Is(err, hostfs.ErrForbidden) {
			t.Fatalf("caller %q: expected ErrForbidden, got %v", caller, err)
		}
	}
	if err := Authorize("owner", nil); !errors.Is(err, hostfs.ErrForbidden) {
		t.Fatalf("nil host: expected ErrForbidden, got %v", err)
	}
}
