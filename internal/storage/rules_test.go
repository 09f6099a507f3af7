package storage_test

import (
	"testing"
)

func TestAddRule_DuplicateIsIgnored(t *testing.T) {
	s := newTestStore(t)

	before, _ := s.Rules()
	if err := s.AddRule("title", "Gemini"); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if err := s.AddRule("title", "Gemini"); err != nil {
		t.Fatalf("duplicate AddRule: %v", err)
	}

	after, _ := s.Rules()
	if len(after) != len(before)+1 {
		t.Errorf("rule count = %d, want %d", len(after), len(before)+1)
	}
}

func TestSetRuleEnabled_RemovesFromSnapshot(t *testing.T) {
	s := newTestStore(t)

	rules, err := s.Rules()
	if err != nil {
		t.Fatal(err)
	}
	var notepad int64
	for _, r := range rules {
		if r.Value == "notepad.exe" {
			notepad = r.ID
		}
	}
	if notepad == 0 {
		t.Fatal("seeded notepad.exe rule not found")
	}

	if err := s.SetRuleEnabled(notepad, false); err != nil {
		t.Fatalf("SetRuleEnabled: %v", err)
	}

	er, err := s.EnabledRulesSnapshot()
	if err != nil {
		t.Fatalf("EnabledRulesSnapshot: %v", err)
	}
	for _, p := range er.Processes {
		if p == "notepad.exe" {
			t.Error("disabled rule still present in snapshot")
		}
	}
}

func TestEnabledRulesSnapshot_LowercasesAndSplitsByType(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddRule("process", "WINWORD.EXE"); err != nil {
		t.Fatal(err)
	}
	er, err := s.EnabledRulesSnapshot()
	if err != nil {
		t.Fatal(err)
	}

	hasTitle := func(v string) bool {
		for _, x := range er.Titles {
			if x == v {
				return true
			}
		}
		return false
	}
	if !hasTitle("chatgpt") {
		t.Errorf("title snapshot not lowercased: %v", er.Titles)
	}
	for _, p := range er.Processes {
		if p != "winword.exe" && p != "wps.exe" && p != "notepad.exe" && p != "feishu.exe" {
			t.Errorf("unexpected process entry %q", p)
		}
	}
}

func TestDeleteRule(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddRule("title", "Scratch"); err != nil {
		t.Fatal(err)
	}
	rules, _ := s.Rules()
	var id int64
	for _, r := range rules {
		if r.Value == "Scratch" {
			id = r.ID
		}
	}
	if err := s.DeleteRule(id); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	rules, _ = s.Rules()
	for _, r := range rules {
		if r.Value == "Scratch" {
			t.Error("rule survived deletion")
		}
	}
}
