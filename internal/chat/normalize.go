package chat

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// fieldPath addresses a value inside a decoded JSON object; each element is
// one level of nesting.
type fieldPath []string

// Resolution order per canonical field. The first path that yields a
// non-empty value wins.
var (
	senderPaths     = []fieldPath{{"fromUserId"}, {"fromId"}, {"from", "id"}}
	recipientPaths  = []fieldPath{{"toUserId"}, {"toId"}, {"to", "id"}}
	textPaths       = []fieldPath{{"text"}, {"message"}}
	idPaths         = []fieldPath{{"id"}}
	senderRolePaths = []fieldPath{{"senderRole"}, {"role"}, {"from", "role"}}
	senderNamePaths = []fieldPath{{"senderName"}, {"fromName"}, {"from", "name"}}
	chatIDPaths     = []fieldPath{{"chatId"}, {"conversationId"}}
	tempIDPaths     = []fieldPath{{"clientTempId"}}
	timestampPath   = fieldPath{"timestamp"}
	createdAtPath   = fieldPath{"createdAt"}
)

// Layouts accepted for createdAt, tried in order.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer converts raw backend payloads into canonical messages. Now is
// only consulted when a payload carries no usable timestamp.
type Normalizer struct {
	Now func() time.Time
}

var defaultNormalizer = Normalizer{Now: time.Now}

// Normalize converts raw using the wall clock for the timestamp fallback.
func Normalize(raw any, sourcePrefix string) Message {
	return defaultNormalizer.Normalize(raw, sourcePrefix)
}

// Normalize converts one raw payload into a Message. It never fails: absent
// or malformed fields degrade to zero values. When the payload has no id one
// is synthesized as "<sourcePrefix>-<timestamp>".
func (n Normalizer) Normalize(raw any, sourcePrefix string) Message {
	obj, _ := raw.(map[string]any)

	ts, ok := resolveTimestamp(obj)
	if !ok {
		ts = n.now().UnixMilli()
	}

	id := firstString(obj, idPaths)
	if id == "" {
		id = sourcePrefix + "-" + strconv.FormatInt(ts, 10)
	}

	return Message{
		ID:           id,
		FromUserID:   firstString(obj, senderPaths),
		ToUserID:     firstString(obj, recipientPaths),
		Text:         firstString(obj, textPaths),
		Timestamp:    ts,
		SenderRole:   firstString(obj, senderRolePaths),
		SenderName:   firstString(obj, senderNamePaths),
		ChatID:       firstString(obj, chatIDPaths),
		ClientTempID: firstString(obj, tempIDPaths),
		Confirmed:    true,
	}
}

func (n Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// ExtractMessages returns the message array carried by a history response.
// The envelope may be the array itself, {data: [...]} or {data: {data: [...]}};
// shapes are tried in that order and an empty slice is returned when none match.
func ExtractMessages(envelope any) []any {
	if arr, ok := envelope.([]any); ok {
		return arr
	}
	obj, ok := envelope.(map[string]any)
	if !ok {
		return []any{}
	}
	if arr, ok := obj["data"].([]any); ok {
		return arr
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		if arr, ok := inner["data"].([]any); ok {
			return arr
		}
	}
	return []any{}
}

func resolveTimestamp(obj map[string]any) (int64, bool) {
	if v, ok := lookup(obj, timestampPath); ok {
		if ms, ok := asInt64(v); ok {
			return ms, true
		}
	}
	if v, ok := lookup(obj, createdAtPath); ok {
		if s, ok := v.(string); ok {
			if t, ok := parseCreatedAt(s); ok {
				return t.UnixMilli(), true
			}
		}
	}
	return 0, false
}

func parseCreatedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstString(obj map[string]any, paths []fieldPath) string {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		if s := asString(v); s != "" {
			return s
		}
	}
	return ""
}

func lookup(obj map[string]any, path fieldPath) (any, bool) {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case int:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

// FromMap rebuilds a Message from its ToMap form, including the local
// confirmation flags that Normalize does not carry.
func FromMap(m map[string]any) Message {
	msg := Normalize(m, "api")
	msg.Confirmed, _ = m["confirmed"].(bool)
	msg.Failed, _ = m["failed"].(bool)
	return msg
}
