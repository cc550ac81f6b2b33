package status

import (
	"errors"
	"testing"
	"time"
)

type codedErr struct{ code uint16 }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() uint16  { return e.code }

func TestTracker_ErrorThenRecovery(t *testing.T) {
	tr := NewTracker()
	if s := tr.Snapshot(); s.Health != HealthUnknown || s.HealthName != "unknown" {
		t.Fatalf("boot snapshot=%+v", s)
	}

	tr.Cycle(time.Unix(1, 0), []CardFailure{{Card: "kl1808", Err: codedErr{code: 2}}})
	tr.Second()
	tr.Second()

	s := tr.Snapshot()
	if s.Health != HealthError || s.LastErrorCode != 2 || s.SecondsInError != 2 {
		t.Fatalf("error snapshot=%+v", s)
	}
	if s.CardErrors["kl1808"] != "coded" {
		t.Fatalf("card errors=%v", s.CardErrors)
	}

	tr.Cycle(time.Unix(2, 0), nil)
	s = tr.Snapshot()
	if s.Health != HealthOK || s.LastErrorCode != 0 || s.SecondsInError != 0 || s.CardErrors != nil {
		t.Fatalf("recovered snapshot=%+v", s)
	}
	if s.Cycles != 2 {
		t.Fatalf("cycles=%d", s.Cycles)
	}

	tr.Second()
	if tr.Snapshot().SecondsInError != 0 {
		t.Fatalf("seconds ticked while OK")
	}
}

func TestTracker_LinkLossAndDisable(t *testing.T) {
	tr := NewTracker()
	tr.Cycle(time.Unix(1, 0), nil)

	tr.Link("disconnected", errors.New("broken pipe"))
	s := tr.Snapshot()
	if s.Health != HealthError || s.LastError != "broken pipe" || s.LastErrorCode != 1 || s.Link != "disconnected" {
		t.Fatalf("snapshot=%+v", s)
	}

	tr.Disable()
	tr.Cycle(time.Unix(2, 0), nil)
	tr.Second()
	if s := tr.Snapshot(); s.Health != HealthDisabled || s.HealthName != "disabled" {
		t.Fatalf("disabled snapshot=%+v", s)
	}
}

func TestTracker_FirstFailureInOrderIsReported(t *testing.T) {
	for i := 0; i < 20; i++ {
		tr := NewTracker()
		tr.Cycle(time.Unix(1, 0), []CardFailure{
			{Card: "inputs", Err: codedErr{code: 2}},
			{Card: "levels", Err: codedErr{code: 4}},
			{Card: "boiler", Err: errors.New("timeout")},
		})
		s := tr.Snapshot()
		if s.LastError != "coded" || s.LastErrorCode != 2 {
			t.Fatalf("run %d: snapshot=%+v", i, s)
		}
		if len(s.CardErrors) != 3 || s.CardErrors["boiler"] != "timeout" {
			t.Fatalf("card errors=%v", s.CardErrors)
		}
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	tr := NewTracker()
	tr.Cycle(time.Unix(1, 0), []CardFailure{{Card: "a", Err: errors.New("x")}})

	s := tr.Snapshot()
	s.CardErrors["a"] = "mutated"
	if tr.Snapshot().CardErrors["a"] != "x" {
		t.Fatalf("snapshot shares map with tracker")
	}
}

func TestErrorCode(t *testing.T) {
	if ErrorCode(nil) != 0 {
		t.Fatalf("nil should be 0")
	}
	if ErrorCode(errors.New("x")) != 1 {
		t.Fatalf("generic should be 1")
	}
	if ErrorCode(codedErr{code: 11}) != 11 {
		t.Fatalf("coded should pass through")
	}
}
