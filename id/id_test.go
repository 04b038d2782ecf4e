package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/researchsync/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"Activation", id.NewActivation, "act_"},
		{"Listener", id.NewListener, "lsn_"},
		{"Job", id.NewJob, "rjob_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestActivationTokensAreDistinct(t *testing.T) {
	a, b := id.NewActivation(), id.NewActivation()
	if a.String() == b.String() {
		t.Fatalf("two activations share token %s", a)
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewActivation()
	parsed, err := id.ParseWithPrefix(original.String(), id.PrefixActivation)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestParseWithPrefixRejectsOtherPrefix(t *testing.T) {
	if _, err := id.ParseWithPrefix(id.NewListener().String(), id.PrefixActivation); err == nil {
		t.Fatal("expected error for listener id parsed as activation")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero value should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil String() = %q, want empty", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("nil Prefix() = %q, want empty", i.Prefix())
	}
}

func TestTextRoundTrip(t *testing.T) {
	original := id.NewJob()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var decoded id.ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded.String() != original.String() {
		t.Errorf("got %q, want %q", decoded.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil || !empty.IsNil() {
		t.Errorf("empty UnmarshalText: err=%v nil=%v", err, empty.IsNil())
	}
}
