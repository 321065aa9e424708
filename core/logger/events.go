package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Job lifecycle event kinds.
const (
	EventJobStarted  = "job_started"
	EventJobStopped  = "job_stopped"
	EventJobFinished = "job_finished"
)

// EventRecorder is a callback that stores events in an external datastore.
type EventRecorder func(ev *structpb.Struct) error

// EventLog records job lifecycle events.
type EventLog struct {
	Record EventRecorder
}

// Events is the shell's event log, nil when events aren't recorded.
var Events *EventLog

// NewJSONLinesEventLog creates an EventLog that exports events in newline
// delimited JSON object format.
func NewJSONLinesEventLog(w io.Writer) *EventLog {
	return &EventLog{
		Record: func(ev *structpb.Struct) error {
			entry, err := protojson.Marshal(ev)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// JobEvent holds the fields of one job event.
type JobEvent struct {
	Kind    string
	Job     int
	Pgid    int
	Command string
	// Status is $? for finished jobs and the signal number for stopped ones.
	Status int
}

// RecordJob records ev in Events, if set.
func RecordJob(ev JobEvent) {
	if Events == nil {
		return
	}
	fields, err := structpb.NewStruct(map[string]interface{}{
		"timestamp_micros": time.Now().UnixMicro(),
		"event":            ev.Kind,
		"job":              ev.Job,
		"pgid":             ev.Pgid,
		"command":          ev.Command,
		"status":           ev.Status,
	})
	if err == nil {
		err = Events.Record(fields)
	}
	if err != nil {
		Debugf("record %s: %v", ev.Kind, err)
	}
}

// ReadJSONLinesLog parses a newline delimited JSON event log.
func ReadJSONLinesLog(r io.Reader, handler func(ev *structpb.Struct)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var ev structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &ev); err != nil {
			return err
		}

		handler(&ev)
	}
	return nil
}

// StrCounter counts occurrences of strings.
type StrCounter map[string]int

// Increment adds one to key's count.
func (s *StrCounter) Increment(key string) {
	if *s == nil {
		*s = make(StrCounter)
	}
	(*s)[key]++
}

// Sorted lists the keys, most frequent first.
func (s StrCounter) Sorted() []string {
	var keys []string
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s[keys[i]] != s[keys[j]] {
			return s[keys[i]] > s[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Report holds statistics about logged job events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Started  StrCounter `json:"started_commands,omitempty"`
	Stopped  StrCounter `json:"stopped_commands,omitempty"`
	Statuses StrCounter `json:"finished_statuses,omitempty"`
}

// Update adds one event to the report.
func (r *Report) Update(ev *structpb.Struct) {
	r.LogEntries++

	fields := ev.GetFields()
	command := fields["command"].GetStringValue()
	switch kind := fields["event"].GetStringValue(); kind {
	case EventJobStarted:
		r.Started.Increment(command)
	case EventJobStopped:
		r.Stopped.Increment(command)
	case EventJobFinished:
		r.Statuses.Increment(fmt.Sprintf("%d", int(fields["status"].GetNumberValue())))
	default:
		r.InvalidEntries.Increment(kind)
	}
}
