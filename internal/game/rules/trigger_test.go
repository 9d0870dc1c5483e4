package rules

import "testing"

func TestHookSet(t *testing.T) {
	hs := Hooks(TriggerFirstNight, TriggerOtherNight)
	if !hs.Has(TriggerFirstNight) || !hs.Has(TriggerOtherNight) {
		t.Fatalf("expected both night hooks in %s", hs)
	}
	if hs.Has(TriggerNomination) {
		t.Fatalf("unexpected nomination hook in %s", hs)
	}
	if got := hs.String(); got != "FIRST_NIGHT|OTHER_NIGHT" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := HookSet(0).String(); got != "NONE" {
		t.Fatalf("unexpected empty string %q", got)
	}
}

func TestNightTrigger(t *testing.T) {
	if NightTrigger(true) != TriggerFirstNight {
		t.Fatalf("first night should map to FIRST_NIGHT")
	}
	if NightTrigger(false) != TriggerOtherNight {
		t.Fatalf("other nights should map to OTHER_NIGHT")
	}
}
