package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Change event types
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventAll    = "*"
)

// Tables clients may subscribe to
var subscribableTables = map[string]bool{
	"orders":                     true,
	"notifications":              true,
	"notification_delivery_logs": true,
	"scheduled_videos":           true,
	"live_streams":               true,
	"videos":                     true,
}

// ChangeEvent describes a row change pushed to subscribers
type ChangeEvent struct {
	Table      string                 `json:"table"`
	Type       string                 `json:"type"`
	Record     map[string]interface{} `json:"record,omitempty"`
	Old        map[string]interface{} `json:"old,omitempty"`
	CommitTime time.Time              `json:"commit_time"`
}

// NewChangeEvent builds a change event from row values. Rows are converted to
// their JSON field maps so filters match the names clients see.
func NewChangeEvent(table, eventType string, record, old interface{}) (ChangeEvent, error) {
	ev := ChangeEvent{Table: table, Type: eventType, CommitTime: time.Now().UTC()}
	var err error
	if record != nil {
		if ev.Record, err = toFieldMap(record); err != nil {
			return ev, err
		}
	}
	if old != nil {
		if ev.Old, err = toFieldMap(old); err != nil {
			return ev, err
		}
	}
	return ev, nil
}

func toFieldMap(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Filter is a column equality filter
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "column=eq.value". An empty string is no filter.
func ParseFilter(s string) (*Filter, error) {
	if s == "" {
		return nil, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return nil, fmt.Errorf("filter must look like column=eq.value")
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return nil, fmt.Errorf("only eq filters are supported")
	}
	return &Filter{Column: column, Value: value}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

func (f *Filter) matches(row map[string]interface{}) bool {
	if f == nil {
		return true
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// Subscription selects change events by table, event type and filter
type Subscription struct {
	ID     string
	Table  string
	Event  string
	Filter *Filter
	// Owner restricts deliveries to rows whose user column equals the
	// subscriber when set
	Owner string
}

// NewSubscription validates a subscribe request.
func NewSubscription(id string, req SubscribePayload) (*Subscription, error) {
	if !subscribableTables[req.Table] {
		return nil, fmt.Errorf("table %q is not available for subscriptions", req.Table)
	}
	event := strings.ToUpper(req.Event)
	if event == "" {
		event = EventAll
	}
	switch event {
	case EventInsert, EventUpdate, EventDelete, EventAll:
	default:
		return nil, fmt.Errorf("unknown event %q", req.Event)
	}
	filter, err := ParseFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	return &Subscription{ID: id, Table: req.Table, Event: event, Filter: filter}, nil
}

// Matches reports whether the subscription wants the event. DELETE events are
// matched against the old row.
func (s *Subscription) Matches(ev ChangeEvent) bool {
	if s.Table != ev.Table {
		return false
	}
	if s.Event != EventAll && s.Event != ev.Type {
		return false
	}
	row := ev.Record
	if ev.Type == EventDelete || row == nil {
		row = ev.Old
	}
	if !s.Filter.matches(row) {
		return false
	}
	if s.Owner != "" && isPrivateTable(ev.Table) {
		return ownedBy(ev.Table, row, s.Owner)
	}
	return true
}

// Row visibility for private tables: a subscriber only sees rows addressed
// to them.
var ownerColumns = map[string][]string{
	"orders":                     {"buyer_id", "seller_id"},
	"notifications":              {"user_id"},
	"notification_delivery_logs": {"user_id"},
	"scheduled_videos":           {"user_id"},
}

func ownedBy(table string, row map[string]interface{}, userID string) bool {
	for _, col := range ownerColumns[table] {
		if v, ok := row[col]; ok && v != nil && fmt.Sprint(v) == userID {
			return true
		}
	}
	return false
}

func isPrivateTable(table string) bool {
	_, ok := ownerColumns[table]
	return ok
}
