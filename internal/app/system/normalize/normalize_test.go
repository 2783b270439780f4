package normalize

import (
	"reflect"
	"testing"
)

func TestEmail(t *testing.T) {
	for in, want := range map[string]string{
		"Ada@Example.COM":        "ada@example.com",
		"  grace@navy.mil\t":     "grace@navy.mil",
		"":                       "",
		"   ":                    "",
		"MiXeD.Case@Library.Org": "mixed.case@library.org",
	} {
		if got := Email(in); got != want {
			t.Errorf("Email(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmails(t *testing.T) {
	got := Emails([]string{" A@x.io ", "", "b@x.io", "   ", "a@X.io"})
	want := []string{"a@x.io", "b@x.io", "a@x.io"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Emails() = %v, want %v", got, want)
	}
	if got := Emails(nil); len(got) != 0 {
		t.Errorf("Emails(nil) = %v, want empty", got)
	}
}

func TestName(t *testing.T) {
	if got := Name("  Spring Reading Circle \n"); got != "Spring Reading Circle" {
		t.Errorf("Name() = %q", got)
	}
}

func TestStatus(t *testing.T) {
	for in, want := range map[string]string{
		"Inviting":  "inviting",
		" ACTIVE ":  "active",
		"cancelled": "cancelled",
		"":          "",
	} {
		if got := Status(in); got != want {
			t.Errorf("Status(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQueryParam(t *testing.T) {
	if got := QueryParam("  65f1c2a9E4b0a1b2c3d4e5f6 "); got != "65f1c2a9E4b0a1b2c3d4e5f6" {
		t.Errorf("QueryParam() = %q", got)
	}
}
