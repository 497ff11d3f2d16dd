package planner

import "testing"

func TestBalancedBraceSlice(t *testing.T) {
	text := `Sure, here you go: {"thought":"ok","steps":[{"tool":"a","params":{"x":"{nested}"}}]} Hope that helps!`
	got, ok := balancedBraceSlice(text)
	if !ok {
		t.Fatal("expected a match")
	}
	if got != `{"thought":"ok","steps":[{"tool":"a","params":{"x":"{nested}"}}]}` {
		t.Fatalf("got %q", got)
	}
}

func TestFencedBlock(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"thought\":\"x\",\"steps\":[]}\n```\nDone."
	got, ok := fencedBlock(text)
	if !ok {
		t.Fatal("expected a match")
	}
	if got != `{"thought":"x","steps":[]}` {
		t.Fatalf("got %q", got)
	}
}

func TestPrefixToLastBrace(t *testing.T) {
	text := `junk { "a": 1 } more junk { "b": 2 } trailing`
	got, ok := prefixToLastBrace(text)
	if !ok {
		t.Fatal("expected a match")
	}
	if got != `{ "a": 1 } more junk { "b": 2 }` {
		t.Fatalf("got %q", got)
	}
}

func TestNoBraceNoMatch(t *testing.T) {
	if _, ok := balancedBraceSlice("no braces here"); ok {
		t.Fatal("expected no match")
	}
	if _, ok := fencedBlock("no braces here"); ok {
		t.Fatal("expected no match")
	}
	if _, ok := prefixToLastBrace("no braces here"); ok {
		t.Fatal("expected no match")
	}
}
