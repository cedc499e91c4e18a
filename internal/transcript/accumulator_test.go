package transcript

import "testing"

func TestCumulativeFragmentsReplace(t *testing.T) {
	var a Accumulator
	a.Observe(RoleAssistant, "Hello", false)
	res := a.Observe(RoleAssistant, "Hello, how", false)
	if res.Display != "Hello, how" {
		t.Fatalf("Display = %q, want %q", res.Display, "Hello, how")
	}
	if a.Text() != "Hello, how" {
		t.Fatalf("Text() = %q, want %q", a.Text(), "Hello, how")
	}
}

func TestIncrementalFragmentsAppend(t *testing.T) {
	var a Accumulator
	a.Observe(RoleAssistant, "Hel", false)
	res := a.Observe(RoleAssistant, "lo", false)
	if res.Display != "Hello" {
		t.Fatalf("Display = %q, want %q", res.Display, "Hello")
	}
}

func TestStyleCanSwitchMidUtterance(t *testing.T) {
	var a Accumulator
	a.Observe(RoleAssistant, "Hi", false)
	a.Observe(RoleAssistant, "Hi there", false) // cumulative
	res := a.Observe(RoleAssistant, ", friend", false) // incremental
	if res.Display != "Hi there, friend" {
		t.Fatalf("Display = %q, want %q", res.Display, "Hi there, friend")
	}
}

func TestAssistantFinalEmitsAndResets(t *testing.T) {
	var a Accumulator
	a.Observe(RoleAssistant, "Done", false)
	if !a.Open() {
		t.Fatalf("Open() = false mid-utterance")
	}
	res := a.Observe(RoleAssistant, "", true)
	if !res.Finalized || res.Display != "Done" {
		t.Fatalf("final result = %+v, want finalized %q", res, "Done")
	}
	if a.Text() != "" || a.Open() {
		t.Fatalf("state not reset: text=%q open=%v", a.Text(), a.Open())
	}

	// A fresh utterance after reset is not treated as a continuation.
	res = a.Observe(RoleAssistant, "Next", false)
	if res.Display != "Next" {
		t.Fatalf("Display after reset = %q, want %q", res.Display, "Next")
	}
}

func TestUserFinalNeverResetsAssistantState(t *testing.T) {
	var a Accumulator
	a.Observe(RoleAssistant, "Partial answer", false)
	res := a.Observe(RoleUser, "what about this?", true)
	if res.Display != "what about this?" {
		t.Fatalf("user Display = %q", res.Display)
	}
	if res.Finalized {
		t.Fatalf("user final must not finalize assistant state")
	}
	if a.Text() != "Partial answer" {
		t.Fatalf("assistant state lost: %q", a.Text())
	}
}

func TestUserFragmentsPassThrough(t *testing.T) {
	var a Accumulator
	res := a.Observe(RoleUser, "hello", false)
	if res.Display != "hello" || res.Finalized {
		t.Fatalf("unexpected result: %+v", res)
	}
	if a.Text() != "" {
		t.Fatalf("user text must not accumulate, got %q", a.Text())
	}
}
