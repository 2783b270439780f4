package inputval

import "testing"

func TestIsValidObjectID(t *testing.T) {
	for id, want := range map[string]bool{
		"65f1c2a9e4b0a1b2c3d4e5f6":   true,
		"65F1C2A9E4B0A1B2C3D4E5F6":   true,
		" 65f1c2a9e4b0a1b2c3d4e5f6 ": true,
		"":                           false,
		"65f1c2a9e4b0a1b2c3d4e5f":    false,
		"65f1c2a9e4b0a1b2c3d4e5f6a":  false,
		"65f1c2a9e4b0a1b2c3d4e5fz":   false,
		"circle-a":                   false,
	} {
		if got := IsValidObjectID(id); got != want {
			t.Errorf("IsValidObjectID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	type poolInput struct {
		Name string `json:"name" validate:"required,max=12"`
		Size int    `json:"targetGroupSize" validate:"required,gte=1,lte=50"`
	}

	tests := []struct {
		name      string
		input     poolInput
		wantField string
		wantFirst string
	}{
		{"valid", poolInput{Name: "Book Club", Size: 4}, "", ""},
		{"missing name", poolInput{Size: 4}, "name", "name is required."},
		{"name too long", poolInput{Name: "A Very Long Pool Name", Size: 4}, "name", "name must be at most 12 characters."},
		{"size too big", poolInput{Name: "Book Club", Size: 51}, "targetGroupSize", "targetGroupSize must be at most 50."},
		{"size missing", poolInput{Name: "Book Club"}, "targetGroupSize", "targetGroupSize is required."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.input)
			if tt.wantFirst == "" {
				if res.HasErrors() {
					t.Fatalf("unexpected errors: %v", res.Errors)
				}
				return
			}
			if !res.HasErrors() {
				t.Fatal("expected errors")
			}
			if res.Errors[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", res.Errors[0].Field, tt.wantField)
			}
			if res.First() != tt.wantFirst {
				t.Errorf("First() = %q, want %q", res.First(), tt.wantFirst)
			}
		})
	}
}

func TestResult_FirstAndAll(t *testing.T) {
	var empty Result
	if empty.First() != "" || empty.All() != "" {
		t.Errorf("empty result: First=%q All=%q", empty.First(), empty.All())
	}

	r := Result{Errors: []FieldError{{Message: "name is required."}, {Message: "emails needs at least 1 entries."}}}
	if r.First() != "name is required." {
		t.Errorf("First() = %q", r.First())
	}
	if want := "name is required.; emails needs at least 1 entries."; r.All() != want {
		t.Errorf("All() = %q, want %q", r.All(), want)
	}
}

func TestValidate_CustomRules(t *testing.T) {
	type IDInput struct {
		ID string `validate:"required,objectid" label:"Group ID"`
	}

	type InviteInput struct {
		Emails []string `validate:"required,min=1,max=3,dive,strictemail" label:"Emails"`
	}

	t.Run("valid ObjectID", func(t *testing.T) {
		result := Validate(IDInput{ID: "507f1f77bcf86cd799439011"})
		if result.HasErrors() {
			t.Errorf("Validate(valid ID) has errors: %v", result.Errors)
		}
	})

	t.Run("invalid ObjectID", func(t *testing.T) {
		result := Validate(IDInput{ID: "invalid-id"})
		if !result.HasErrors() {
			t.Error("Validate(invalid ID) should have errors")
		}
		if result.First() != "Group ID must be a valid ID." {
			t.Errorf("First() = %q", result.First())
		}
	})

	t.Run("valid email list", func(t *testing.T) {
		result := Validate(InviteInput{Emails: []string{"a@example.com", "b@example.com"}})
		if result.HasErrors() {
			t.Errorf("Validate(valid emails) has errors: %v", result.Errors)
		}
	})

	t.Run("malformed email in list", func(t *testing.T) {
		result := Validate(InviteInput{Emails: []string{"a@example.com", "user..name@example.com"}})
		if result.First() != "A valid email address is required." {
			t.Errorf("First() = %q", result.First())
		}
	})

	t.Run("too many emails", func(t *testing.T) {
		result := Validate(InviteInput{Emails: []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io"}})
		if result.First() != "Emails may have at most 3 entries." {
			t.Errorf("First() = %q", result.First())
		}
	})
}
