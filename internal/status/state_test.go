package status

import (
	"testing"

	"github.com/matheus3301/jewelchat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Uninitialized {
		t.Errorf("initial state = %s, want UNINITIALIZED", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Uninitialized, Connecting},
		{Connecting, Connected},
		{Connecting, Disconnected},
		{Connecting, Uninitialized},
		{Connected, Disconnected},
		{Connected, Uninitialized},
		{Disconnected, Connected},
		{Disconnected, Uninitialized},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(UNINITIALIZED -> CONNECTED) should fail")
	}
	if m.Current() != Uninitialized {
		t.Errorf("state = %s, want UNINITIALIZED (should not have changed)", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Uninitialized || change.To != Connecting {
		t.Errorf("change = %v -> %v, want UNINITIALIZED -> CONNECTING", change.From, change.To)
	}
}

// TestDisconnectIsNotTeardown verifies that a transport drop keeps the session
// distinct from a torn-down one, and that the transport's own reconnect lands
// back in CONNECTED without passing through CONNECTING.
func TestDisconnectIsNotTeardown(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	if err := m.Transition(Disconnected); err != nil {
		t.Fatal(err)
	}
	if m.Current() == Uninitialized {
		t.Fatal("disconnect must not reset to UNINITIALIZED")
	}
	if err := m.Transition(Connected); err != nil {
		t.Fatalf("DISCONNECTED -> CONNECTED: %v", err)
	}
}

func TestReset(t *testing.T) {
	for _, s := range []State{Uninitialized, Connecting, Connected, Disconnected} {
		m := NewMachine(nil)
		walkTo(t, m, s)
		m.Reset()
		if m.Current() != Uninitialized {
			t.Errorf("Reset from %s: state = %s, want UNINITIALIZED", s, m.Current())
		}
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Uninitialized: {},
		Connecting:    {Connecting},
		Connected:     {Connecting, Connected},
		Disconnected:  {Connecting, Connected, Disconnected},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
