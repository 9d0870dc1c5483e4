package rules

import "testing"

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	deaths := 0
	votes := 0

	handle1 := bus.SubscribeTyped(EventDeath, func(e Event) {
		deaths++
	})
	bus.SubscribeTyped(EventVoteCast, func(e Event) {
		votes++
	})

	bus.Publish(NewEvent(EventDeath, "p1", "p2"))
	if deaths != 1 || votes != 0 {
		t.Fatalf("expected 1 death and 0 votes, got %d and %d", deaths, votes)
	}

	bus.Publish(NewEvent(EventVoteCast, "p3", "p1"))
	if votes != 1 {
		t.Fatalf("expected vote count 1, got %d", votes)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewEvent(EventDeath, "p4", ""))
	if deaths != 1 {
		t.Fatalf("expected death count still 1 after unsubscribe, got %d", deaths)
	}
}

func TestEventBusSubscribeAllPreservesOrder(t *testing.T) {
	bus := NewEventBus()

	var order []string
	bus.Subscribe(func(e Event) { order = append(order, "first:"+string(e.Type)) })
	bus.Subscribe(func(e Event) { order = append(order, "second:"+string(e.Type)) })

	bus.PublishBatch([]Event{
		NewEvent(EventNomination, "p1", "p2"),
		NewEvent(EventExecution, "p1", ""),
	})

	want := []string{
		"first:NOMINATION", "second:NOMINATION",
		"first:EXECUTION", "second:EXECUTION",
	}
	if len(order) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestEventLogAppendAssignsSequence(t *testing.T) {
	log := NewEventLog()
	first := log.Append(NewEvent(EventGameStarted, "", ""))
	second := log.Append(NewEvent(EventPhaseChanged, "", ""))

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected sequence 1,2 got %d,%d", first.Seq, second.Seq)
	}
	if log.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", log.Len())
	}
	since := log.Since(1)
	if len(since) != 1 || since[0].Type != EventPhaseChanged {
		t.Fatalf("unexpected Since result %+v", since)
	}
	if log.Since(5) != nil {
		t.Fatalf("expected nil past the end")
	}
}

func TestEventVisibility(t *testing.T) {
	public := NewEvent(EventDeath, "p1", "")
	private := NewPrivateEvent(EventReveal, "p2", "p2")
	audit := NewStorytellerEvent(EventAbilityNoOp, "p3", "p3").WithAudit(MetaReason, "impaired")

	if !public.VisibleTo("") || !public.VisibleTo("p9") {
		t.Fatalf("public events should be visible to everyone")
	}
	if private.VisibleTo("") || private.VisibleTo("p1") || !private.VisibleTo("p2") {
		t.Fatalf("private events should be visible to their player only")
	}
	if audit.VisibleTo("") || audit.VisibleTo("p3") {
		t.Fatalf("storyteller events should not be visible to players")
	}
	if audit.Public().Audit != nil {
		t.Fatalf("public view must drop audit detail")
	}
	acted := NewEvent(EventReveal, "p1", "p1")
	acted.Character = "empath"
	if acted.Public().Character != "" {
		t.Fatalf("public view must hide the acting character")
	}
}

func TestEventWithDoesNotShareMetadata(t *testing.T) {
	base := NewEvent(EventDeath, "p1", "").With(MetaCause, "executed")
	derived := base.With(MetaCause, "demon").WithAudit(MetaSource, "p9")
	if base.Metadata[MetaCause] != "executed" {
		t.Fatalf("With must not write into the receiver's metadata, got %q", base.Metadata[MetaCause])
	}
	if base.Audit != nil {
		t.Fatalf("WithAudit must not write into the receiver's audit")
	}
	if derived.Metadata[MetaCause] != "demon" || derived.Audit[MetaSource] != "p9" {
		t.Fatalf("derived event lost its keys: %v %v", derived.Metadata, derived.Audit)
	}
}

func TestEventPublicCopiesMetadata(t *testing.T) {
	base := NewEvent(EventDeath, "p1", "").With(MetaCause, "executed")
	view := base.Public()
	view.Metadata[MetaCause] = "changed"
	if base.Metadata[MetaCause] != "executed" {
		t.Fatalf("public view must copy metadata")
	}
}

func TestEventLogReadsAreCopies(t *testing.T) {
	log := NewEventLog()
	log.Append(NewStorytellerEvent(EventDeath, "p1", "").With(MetaCause, "executed").WithAudit(MetaSource, "p2"))

	for _, read := range [][]Event{log.All(), log.Since(0), log.Filter(func(Event) bool { return true })} {
		read[0].Metadata[MetaCause] = "changed"
		read[0].Audit[MetaSource] = "changed"
	}
	stored := log.All()[0]
	if stored.Metadata[MetaCause] != "executed" || stored.Audit[MetaSource] != "p2" {
		t.Fatalf("log entries must not be reachable through reads, got %v %v", stored.Metadata, stored.Audit)
	}
}
