package requestctx

import (
	"context"
	"testing"
)

func TestStaffFromContextRoundTrip(t *testing.T) {
	ctx := WithStaff(context.Background(), Staff{Username: "ola", Permissions: map[string]bool{"view_case": true}})
	got, ok := StaffFromContext(ctx)
	if !ok {
		t.Fatal("expected staff in context")
	}
	if got.Username != "ola" {
		t.Fatalf("Username = %q, want %q", got.Username, "ola")
	}
}

func TestStaffFromContextNil(t *testing.T) {
	if _, ok := StaffFromContext(nil); ok {
		t.Fatal("expected no staff for nil context")
	}
}

func TestWithStaffNilContext(t *testing.T) {
	ctx := WithStaff(nil, Staff{Username: "a"})
	if _, ok := StaffFromContext(ctx); !ok {
		t.Fatal("expected staff after WithStaff on nil context")
	}
}

func TestHasPerm(t *testing.T) {
	staff := Staff{Permissions: map[string]bool{"view_letter": true}}
	if !staff.HasPerm("view_letter") {
		t.Fatal("expected granted permission")
	}
	if staff.HasPerm("delete_letter") {
		t.Fatal("expected missing permission to be denied")
	}
	if !(Staff{Superuser: true}).HasPerm("delete_letter") {
		t.Fatal("expected superuser to hold every permission")
	}
}
