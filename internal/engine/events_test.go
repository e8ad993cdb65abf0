package engine_test

import (
	"testing"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/model"
)

func stepEvent(execID, stepID string, status model.StepStatus) engine.StepEvent {
	return engine.StepEvent{
		ExecutionID: execID,
		Framework:   model.FrameworkLangGraph,
		Step:        model.ExecutionStep{ID: stepID, Status: status},
	}
}

func TestEventBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	defer unsub()

	events := []engine.StepEvent{
		stepEvent("e1", "init", model.StepRunning),
		stepEvent("e1", "init", model.StepCompleted),
		stepEvent("e1", "node_a", model.StepRunning),
	}
	for _, ev := range events {
		b.Publish(ev)
	}
	b.Close("e1")

	var got []engine.StepEvent
	for ev := range ch {
		got = append(got, ev)
	}

	if len(got) != len(events) {
		t.Fatalf("got %d events, want %d", len(got), len(events))
	}
	for i, ev := range got {
		if ev.Step.ID != events[i].Step.ID || ev.Step.Status != events[i].Step.Status {
			t.Errorf("event[%d] = %+v, want %+v", i, ev.Step, events[i].Step)
		}
	}
}

func TestEventBrokerMultipleSubscribers(t *testing.T) {
	b := engine.NewEventBroker()
	ch1, unsub1 := b.Subscribe("e1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("e1")
	defer unsub2()

	b.Publish(stepEvent("e1", "init", model.StepCompleted))
	b.Close("e1")

	var got1, got2 []engine.StepEvent
	for ev := range ch1 {
		got1 = append(got1, ev)
	}
	for ev := range ch2 {
		got2 = append(got2, ev)
	}

	if len(got1) != 1 || got1[0].Step.ID != "init" {
		t.Errorf("subscriber 1 got %v, want [init]", got1)
	}
	if len(got2) != 1 || got2[0].Step.ID != "init" {
		t.Errorf("subscriber 2 got %v, want [init]", got2)
	}
}

func TestEventBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := engine.NewEventBroker()
	b.Publish(stepEvent("e1", "init", model.StepRunning))
	b.Close("e1")

	ch, unsub := b.Subscribe("e1")
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestEventBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	unsub()

	b.Publish(stepEvent("e1", "init", model.StepRunning))
	b.Close("e1")

	select {
	case ev, ok := <-ch:
		if ok {
			t.Errorf("got unexpected event %+v after unsubscribe", ev)
		}
	default:
	}
}

func TestEventBrokerPublishToUnknownExecutionIsNoop(t *testing.T) {
	b := engine.NewEventBroker()
	b.Publish(stepEvent("nonexistent", "init", model.StepRunning))
	b.Close("nonexistent")
}

func TestEventBrokerOpenResetsClosedTopic(t *testing.T) {
	b := engine.NewEventBroker()
	b.Close("e1")
	b.Open("e1")

	ch, unsub := b.Subscribe("e1")
	defer unsub()

	b.Publish(stepEvent("e1", "init", model.StepRunning))
	b.Close("e1")

	var got int
	for range ch {
		got++
	}
	if got != 1 {
		t.Errorf("got %d events after reopen, want 1", got)
	}
}

func TestEventBrokerForgetClosesSubscribers(t *testing.T) {
	b := engine.NewEventBroker()
	ch, unsub := b.Subscribe("e1")
	defer unsub()

	b.Forget("e1")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Forget")
	}
}
