package typemodel

import (
	"errors"
	"testing"

	tlerrors "github.com/wippyai/typelib/errors"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "/double", true},
		{"nested namespace", "/ns_namedVector/samples/Joints", true},
		{"pointer", "/double*", true},
		{"array", "/double[4]", true},
		{"container", "/std/vector</double>", true},
		{"nested container", "/std/vector</std/vector</double>>", true},
		{"empty", "", false},
		{"relative", "double", false},
		{"empty segment", "/std//vector", false},
		{"unbalanced open", "/std/vector</double", false},
		{"unbalanced close", "/std/vector/double>", false},
		{"whitespace", "/std/vector< /double>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.valid && err != nil {
				t.Errorf("ValidateName(%q) = %v, want nil", tt.input, err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatalf("ValidateName(%q) = nil, want error", tt.input)
				}
				if !errors.Is(err, &tlerrors.Error{Kind: tlerrors.KindBadName}) {
					t.Errorf("ValidateName(%q) kind = %v, want bad_name", tt.input, err)
				}
			}
		})
	}
}

func TestNamespaceBasename(t *testing.T) {
	tests := []struct {
		input     string
		namespace string
		basename  string
	}{
		{"/double", "/", "double"},
		{"/std/string", "/std/", "string"},
		{"/ns_namedVector/samples/Joints", "/ns_namedVector/samples/", "Joints"},
		{"/std/vector</double>", "/std/", "vector</double>"},
		{"/std/vector</std/string>", "/std/", "vector</std/string>"},
		{"/wrappers/Wrapper</std/vector</double>>", "/wrappers/", "Wrapper</std/vector</double>>"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NamespaceOf(tt.input); got != tt.namespace {
				t.Errorf("NamespaceOf = %q, want %q", got, tt.namespace)
			}
			if got := BasenameOf(tt.input); got != tt.basename {
				t.Errorf("BasenameOf = %q, want %q", got, tt.basename)
			}
		})
	}
}

func TestDerivedNames(t *testing.T) {
	if got := PointerName("/A"); got != "/A*" {
		t.Errorf("PointerName = %q, want /A*", got)
	}
	if got := ArrayName("/A", 3); got != "/A[3]" {
		t.Errorf("ArrayName = %q, want /A[3]", got)
	}
	if got := ContainerName("/std/vector", "/double"); got != "/std/vector</double>" {
		t.Errorf("ContainerName = %q, want /std/vector</double>", got)
	}
	if got := ArrayName(ArrayName("/A", 3), 2); got != "/A[3][2]" {
		t.Errorf("nested ArrayName = %q, want /A[3][2]", got)
	}
}
