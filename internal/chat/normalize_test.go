package chat

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func testNormalizer() Normalizer {
	return Normalizer{Now: func() time.Time { return fixedNow }}
}

func TestNormalizeSenderResolution(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"fromUserId", map[string]any{"fromUserId": "u1"}, "u1"},
		{"fromId", map[string]any{"fromId": "u2"}, "u2"},
		{"nested from.id", map[string]any{"from": map[string]any{"id": "u3"}}, "u3"},
		{"fromUserId wins over fromId", map[string]any{"fromUserId": "a", "fromId": "b"}, "a"},
		{"fromId wins over from.id", map[string]any{"fromId": "b", "from": map[string]any{"id": "c"}}, "b"},
		{"empty fromUserId falls through", map[string]any{"fromUserId": "", "fromId": "b"}, "b"},
		{"numeric id", map[string]any{"fromId": float64(42)}, "42"},
		{"from not an object", map[string]any{"from": "x"}, ""},
		{"absent", map[string]any{}, ""},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.raw, "srv")
			if got.FromUserID != tt.want {
				t.Errorf("FromUserID = %q, want %q", got.FromUserID, tt.want)
			}
		})
	}
}

func TestNormalizeRecipientAndText(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		wantTo   string
		wantText string
	}{
		{"toUserId+text", map[string]any{"toUserId": "p", "text": "hi"}, "p", "hi"},
		{"toId+message", map[string]any{"toId": "q", "message": "yo"}, "q", "yo"},
		{"to.id", map[string]any{"to": map[string]any{"id": "r"}}, "r", ""},
		{"text before message", map[string]any{"text": "a", "message": "b"}, "", "a"},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.raw, "srv")
			if got.ToUserID != tt.wantTo {
				t.Errorf("ToUserID = %q, want %q", got.ToUserID, tt.wantTo)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	iso := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	tests := []struct {
		name string
		raw  map[string]any
		want int64
	}{
		{"numeric timestamp", map[string]any{"timestamp": float64(1700000000123)}, 1700000000123},
		{"json.Number timestamp", map[string]any{"timestamp": json.Number("1700000000456")}, 1700000000456},
		{"timestamp wins over createdAt", map[string]any{"timestamp": float64(5), "createdAt": "2025-01-01T00:00:00Z"}, 5},
		{"createdAt ISO", map[string]any{"createdAt": "2025-01-01T00:00:00Z"}, iso},
		{"createdAt with millis", map[string]any{"createdAt": "2025-01-01T00:00:00.250Z"}, iso + 250},
		{"createdAt garbage", map[string]any{"createdAt": "yesterday"}, fixedNow.UnixMilli()},
		{"string timestamp ignored", map[string]any{"timestamp": "123"}, fixedNow.UnixMilli()},
		{"absent", map[string]any{}, fixedNow.UnixMilli()},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.raw, "srv")
			if got.Timestamp != tt.want {
				t.Errorf("Timestamp = %d, want %d", got.Timestamp, tt.want)
			}
		})
	}
}

func TestNormalizeSynthesizesID(t *testing.T) {
	n := testNormalizer()

	got := n.Normalize(map[string]any{"timestamp": float64(77)}, "srv")
	if got.ID != "srv-77" {
		t.Errorf("ID = %q, want srv-77", got.ID)
	}

	// Same input, same id.
	again := n.Normalize(map[string]any{"timestamp": float64(77)}, "srv")
	if again.ID != got.ID {
		t.Errorf("ID not stable: %q vs %q", again.ID, got.ID)
	}

	withID := n.Normalize(map[string]any{"id": "abc", "timestamp": float64(77)}, "srv")
	if withID.ID != "abc" {
		t.Errorf("ID = %q, want abc", withID.ID)
	}
}

func TestNormalizeMalformedInput(t *testing.T) {
	n := testNormalizer()
	for _, raw := range []any{nil, "string", 42, []any{1, 2}} {
		got := n.Normalize(raw, "srv")
		if got.FromUserID != "" || got.Text != "" {
			t.Errorf("Normalize(%v) = %+v, want empty fields", raw, got)
		}
		if got.Timestamp != fixedNow.UnixMilli() {
			t.Errorf("Normalize(%v) timestamp = %d, want now", raw, got.Timestamp)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	raw := map[string]any{
		"fromId":  "u1",
		"message": "x",
		"extra":   "dropped",
		"from":    map[string]any{"id": "ignored"},
	}
	before := map[string]any{
		"fromId":  "u1",
		"message": "x",
		"extra":   "dropped",
		"from":    map[string]any{"id": "ignored"},
	}

	_ = testNormalizer().Normalize(raw, "srv")

	if !reflect.DeepEqual(raw, before) {
		t.Errorf("input mutated: %v", raw)
	}
}

func TestNormalizeMetadata(t *testing.T) {
	got := testNormalizer().Normalize(map[string]any{
		"from":         map[string]any{"id": "s1", "role": "seller", "name": "Gem House"},
		"chatId":       "c9",
		"clientTempId": "me-1",
	}, "srv")

	if got.SenderRole != "seller" || got.SenderName != "Gem House" {
		t.Errorf("sender meta = %q/%q, want seller/Gem House", got.SenderRole, got.SenderName)
	}
	if got.ChatID != "c9" {
		t.Errorf("ChatID = %q, want c9", got.ChatID)
	}
	if got.ClientTempID != "me-1" {
		t.Errorf("ClientTempID = %q, want me-1", got.ClientTempID)
	}
	if !got.Confirmed {
		t.Error("server-sourced message should be confirmed")
	}
}

func TestExtractMessages(t *testing.T) {
	m1 := map[string]any{"id": "1"}
	m2 := map[string]any{"id": "2"}
	want := []any{m1, m2}

	tests := []struct {
		name     string
		envelope any
	}{
		{"bare array", []any{m1, m2}},
		{"data array", map[string]any{"data": []any{m1, m2}}},
		{"nested data", map[string]any{"data": map[string]any{"data": []any{m1, m2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMessages(tt.envelope)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("ExtractMessages() = %v, want %v", got, want)
			}
		})
	}
}

func TestExtractMessagesNoMatch(t *testing.T) {
	for _, envelope := range []any{
		nil,
		"x",
		map[string]any{},
		map[string]any{"data": "x"},
		map[string]any{"data": map[string]any{"items": []any{}}},
	} {
		got := ExtractMessages(envelope)
		if got == nil || len(got) != 0 {
			t.Errorf("ExtractMessages(%v) = %v, want empty slice", envelope, got)
		}
	}
}

// TestHistoryEnvelopeScenario decodes a real-looking history response and
// checks the canonical result end to end.
func TestHistoryEnvelopeScenario(t *testing.T) {
	body := `{"success":true,"data":{"data":[{"id":"a","fromId":"u1","message":"x","createdAt":"2025-01-01T00:00:00Z"}],"meta":{"page":1}}}`

	var envelope any
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		t.Fatal(err)
	}

	raw := ExtractMessages(envelope)
	if len(raw) != 1 {
		t.Fatalf("got %d messages, want 1", len(raw))
	}
	m := Normalize(raw[0], "hist")

	if m.ID != "a" || m.FromUserID != "u1" || m.Text != "x" {
		t.Errorf("message = %+v", m)
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if m.Timestamp != want {
		t.Errorf("Timestamp = %d, want %d", m.Timestamp, want)
	}
}

func TestFromMapRoundTrip(t *testing.T) {
	orig := Message{ID: "me-5", FromUserID: "a", ToUserID: "b", Text: "hi", Timestamp: 5, Failed: true}
	got := FromMap(orig.ToMap())
	if got != orig {
		t.Errorf("FromMap(ToMap()) = %+v, want %+v", got, orig)
	}
}
