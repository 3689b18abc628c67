package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/cognicore/kinship/pkg/kinship/intent"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

func TestFormatSiblings(t *testing.T) {
	got, err := Format(intent.Intent{FunctionName: "get-siblings", Args: []string{"Chernet"}})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != "! (get-siblings Chernet)" {
		t.Errorf("unexpected query %q", got)
	}
}

func TestFormatEthnicity(t *testing.T) {
	got, err := Format(intent.Intent{FunctionName: "get-ethnicity", Args: []string{"Chernet", "Oromo"}})
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != "! (get-ethnicity Chernet Oromo)" {
		t.Errorf("unexpected query %q", got)
	}
}

func TestFormatJoinsArgsInOrder(t *testing.T) {
	cases := [][]string{
		nil,
		{},
		{"A"},
		{"A", "B"},
		{"A", "B", "C"},
	}
	for _, args := range cases {
		got, err := Format(intent.Intent{FunctionName: "get-relations", Args: args})
		if err != nil {
			t.Fatalf("Format(%v): %v", args, err)
		}
		want := "! (" + "get-relations" + " " + strings.Join(args, " ") + ")"
		if got != want {
			t.Errorf("Format(%v) = %q, want %q", args, got, want)
		}
	}
}

func TestFormatZeroArgsKeepsSpace(t *testing.T) {
	got, _ := Format(intent.Intent{FunctionName: "get-children"})
	if got != "! (get-children )" {
		t.Errorf("unexpected query %q", got)
	}
}

func TestFormatEmptyFunction(t *testing.T) {
	got, err := Format(intent.Intent{FunctionName: "", Args: []string{"Chernet"}})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if got != "" {
		t.Errorf("no query should be produced, got %q", got)
	}
}

func TestParse(t *testing.T) {
	call, err := Parse("! (get-ethnicity Chernet Oromo)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if call.Function != "get-ethnicity" {
		t.Errorf("function = %q", call.Function)
	}
	if len(call.Args) != 2 || call.Args[0] != "Chernet" || call.Args[1] != "Oromo" {
		t.Errorf("args = %v", call.Args)
	}
}

func TestParseTrailingSpace(t *testing.T) {
	call, err := Parse("! (get-children )")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if call.Function != "get-children" || len(call.Args) != 0 {
		t.Errorf("unexpected call %+v", call)
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		"",
		"(get-siblings Chernet)",
		"! get-siblings",
		"! ()",
		"! (get-siblings (Chernet))",
		"! (get-siblings Chernet",
	}
	for _, text := range bad {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}

func TestFormatThenParse(t *testing.T) {
	in := intent.Intent{FunctionName: "get-cousins", Args: []string{"Kaleb"}}
	text, err := Format(in)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	call, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if call.Function != in.FunctionName || call.Args[0] != "Kaleb" {
		t.Errorf("unexpected call %+v", call)
	}
}
