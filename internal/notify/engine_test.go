package notify

import (
	"testing"
	"time"

	"bakerybms/client/internal/domain"
)

func TestAdd_InsertionOrder(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	first := e.Add(domain.NotifyInfo, "first", "", NoAutoClose)
	second := e.Add(domain.NotifyInfo, "second", "", NoAutoClose)

	items := e.List()
	if len(items) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(items))
	}
	if items[0].ID != first || items[1].ID != second {
		t.Fatalf("expected insertion order, got %v then %v", items[0].ID, items[1].ID)
	}
}

func TestAdd_AutoExpiry(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	e.Add(domain.NotifyInfo, "short-lived", "", 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(e.List()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("notification did not expire, inbox: %v", e.List())
}

func TestRemove_Idempotent(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	id := e.Add(domain.NotifyInfo, "once", "", NoAutoClose)
	e.Remove(id)
	e.Remove(id)
	e.Remove("never-existed")

	if got := len(e.List()); got != 0 {
		t.Fatalf("expected empty inbox, got %d", got)
	}
}

func TestClearAll(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	e.Add(domain.NotifyInfo, "a", "", NoAutoClose)
	e.Add(domain.NotifyWarning, "b", "", NoAutoClose)
	e.ClearAll()

	if got := len(e.List()); got != 0 {
		t.Fatalf("expected empty inbox after ClearAll, got %d", got)
	}
}

func TestNotifyHelpers_KindsAndMessages(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	e.NotifyLowStock("Croissant", 3, 5)
	e.NotifyOutOfStock("Baguette")
	e.NotifySuccess("Saved", "ok")
	e.NotifyError("Failed", "boom")
	e.NotifyInfo("FYI", "note")

	items := e.List()
	if len(items) != 5 {
		t.Fatalf("expected 5 notifications, got %d", len(items))
	}

	if items[0].Kind != domain.NotifyWarning || items[0].Message != "Croissant is running low! Current stock: 3 (threshold: 5)" {
		t.Fatalf("unexpected low-stock notification: %+v", items[0])
	}
	if items[1].Kind != domain.NotifyError || items[1].Message != "Baguette is out of stock!" {
		t.Fatalf("unexpected out-of-stock notification: %+v", items[1])
	}
	if items[2].Kind != domain.NotifySuccess || items[3].Kind != domain.NotifyError || items[4].Kind != domain.NotifyInfo {
		t.Fatalf("unexpected kinds: %s %s %s", items[2].Kind, items[3].Kind, items[4].Kind)
	}
}

func TestClose_RejectsFurtherAdds(t *testing.T) {
	e := NewEngine()
	e.Add(domain.NotifyInfo, "pre-close", "", NoAutoClose)
	e.Close()

	if id := e.Add(domain.NotifyInfo, "post-close", "", NoAutoClose); id != "" {
		t.Fatalf("expected add after close to be rejected, got id %s", id)
	}
	if got := len(e.List()); got != 0 {
		t.Fatalf("expected empty inbox after close, got %d", got)
	}
}
