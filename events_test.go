package vnats

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func roundTrip(t *testing.T, ev Event) Event {
	t.Helper()

	b, err := ev.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Event
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return got
}

func TestRoundTripProfileCreated(t *testing.T) {
	grad := time.Date(2028, 5, 15, 0, 0, 0, 0, time.UTC)
	gpa := 3.7

	ev := New(&ProfileCreated{
		StudentID:          "stu-1",
		Email:              "stu@example.edu",
		FirstName:          "Ada",
		LastName:           "Park",
		InstitutionID:      "inst-1",
		Major:              "CS",
		Year:               2,
		EnrollmentStatus:   "enrolled",
		StudentType:        "undergraduate",
		MatriculationDate:  time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC),
		ExpectedGraduation: &grad,
		CumulativeGPA:      &gpa,
	}, Metadata{
		SourceService: "profile-svc",
		CorrelationID: "corr-1",
		UserID:        "u-1",
		TraceContext:  map[string]string{"traceparent": "00-abc-def-01"},
	})

	got := roundTrip(t, ev)

	if got.ID != ev.ID || got.Type != TypeProfileCreated || got.Version != "1.0" {
		t.Errorf("envelope mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ev.Timestamp)
	}
	if !reflect.DeepEqual(got.Metadata, ev.Metadata) {
		t.Errorf("metadata = %+v, want %+v", got.Metadata, ev.Metadata)
	}

	p, ok := got.Payload.(*ProfileCreated)
	if !ok {
		t.Fatalf("payload type = %T", got.Payload)
	}
	if !reflect.DeepEqual(p, ev.Payload) {
		t.Errorf("payload = %+v, want %+v", p, ev.Payload)
	}
}

func TestRoundTripUpdatedChanges(t *testing.T) {
	ev := New(&CourseUpdated{
		CourseID: "c-1",
		Changes: map[string]any{
			"title":   "Advanced OS",
			"credits": float64(4),
		},
		PreviousValues: map[string]any{
			"title":   "OS",
			"credits": float64(3),
		},
	}, Metadata{SourceService: "course-svc"})

	got := roundTrip(t, ev)

	p, ok := got.Payload.(*CourseUpdated)
	if !ok {
		t.Fatalf("payload type = %T", got.Payload)
	}
	if !reflect.DeepEqual(p, ev.Payload) {
		t.Errorf("payload = %+v, want %+v", p, ev.Payload)
	}
}

func TestRoundTripScheduleDates(t *testing.T) {
	ev := New(&ClassScheduleCreated{
		ScheduleID:         "sch-1",
		CourseID:           "c-1",
		InstitutionID:      "inst-1",
		DaysOfWeek:         []string{"Mon", "Wed"},
		StartTime:          "10:00",
		EndTime:            "11:15",
		Building:           "Olin",
		Room:               "155",
		Campus:             "Main",
		Format:             "in_person",
		SectionNumber:      "001",
		EnrollmentCapacity: 120,
		TermStartDate:      NewDate(2026, time.August, 24),
		TermEndDate:        NewDate(2026, time.December, 11),
	}, Metadata{SourceService: "schedule-svc"})

	got := roundTrip(t, ev)

	p, ok := got.Payload.(*ClassScheduleCreated)
	if !ok {
		t.Fatalf("payload type = %T", got.Payload)
	}
	if p.TermStartDate != NewDate(2026, time.August, 24) {
		t.Errorf("term start = %v", p.TermStartDate)
	}
	if !reflect.DeepEqual(p, ev.Payload) {
		t.Errorf("payload = %+v, want %+v", p, ev.Payload)
	}
}

func TestRoundTripDeleted(t *testing.T) {
	ev := New(&ExamDeleted{
		ExamID:         "e-1",
		SoftDelete:     true,
		DeletionReason: "duplicate",
	}, Metadata{SourceService: "exam-svc"})

	got := roundTrip(t, ev)
	if !reflect.DeepEqual(got.Payload, ev.Payload) {
		t.Errorf("payload = %+v, want %+v", got.Payload, ev.Payload)
	}
}

func TestFlatWireFormat(t *testing.T) {
	ev := New(&CourseDeleted{CourseID: "c-9", SoftDelete: true},
		Metadata{SourceService: "course-svc"})

	b, err := ev.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// Envelope and payload fields share one flat object.
	for _, k := range []string{"event_id", "event_type", "event_version", "timestamp", "metadata", "course_id", "soft_delete"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing top-level field %q", k)
		}
	}
	if m["event_type"] != TypeCourseDeleted {
		t.Errorf("event_type = %v", m["event_type"])
	}
	if m["course_id"] != "c-9" {
		t.Errorf("course_id = %v", m["course_id"])
	}
}

func TestMarshalSetsDefaults(t *testing.T) {
	ev := Event{
		Payload:  &QuizDeleted{QuizID: "q-1"},
		Metadata: Metadata{SourceService: "quiz-svc"},
	}

	if _, err := ev.Marshal(); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if ev.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if ev.Version != "1.0" {
		t.Errorf("version = %q, want 1.0", ev.Version)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not assigned")
	}
	if ev.Type != TypeQuizDeleted {
		t.Errorf("type = %q, want %q", ev.Type, TypeQuizDeleted)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
	}{
		{"missing payload", Event{Metadata: Metadata{SourceService: "s"}}},
		{"missing source service", Event{Payload: &QuizDeleted{QuizID: "q"}}},
		{"type mismatch", Event{
			Type:     TypeExamDeleted,
			Payload:  &QuizDeleted{QuizID: "q"},
			Metadata: Metadata{SourceService: "s"},
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.ev.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	var ev Event
	err := ev.Unmarshal([]byte(`{"event_type":"academic.mystery.created","event_id":"` + uuid.NewString() + `"}`))
	if err == nil || !strings.Contains(err.Error(), "unknown event type") {
		t.Errorf("error = %v, want unknown event type", err)
	}
}

func TestUnmarshalMissingType(t *testing.T) {
	var ev Event
	if err := ev.Unmarshal([]byte(`{"course_id":"c-1"}`)); err == nil {
		t.Error("expected error for missing event_type")
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	var ev Event
	if err := ev.Unmarshal([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestIs(t *testing.T) {
	ev := New(&QuizDeleted{QuizID: "q"}, Metadata{SourceService: "s"})

	if !ev.Is(TypeExamDeleted, TypeQuizDeleted) {
		t.Error("Is should match")
	}
	if ev.Is(TypeExamDeleted, TypeCourseDeleted) {
		t.Error("Is should not match")
	}
}

func TestDateCodec(t *testing.T) {
	d := NewDate(2026, time.January, 5)
	if d.String() != "2026-01-05" {
		t.Errorf("String = %q", d.String())
	}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2026-01-05"` {
		t.Errorf("json = %s", b)
	}

	var got Date
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != d {
		t.Errorf("round trip = %v, want %v", got, d)
	}

	if err := json.Unmarshal([]byte(`"05/01/2026"`), &got); err == nil {
		t.Error("expected error for bad date format")
	}
}

func TestPayloadTableCoversAllTypes(t *testing.T) {
	types := []string{
		TypeProfileCreated, TypeProfileUpdated, TypeProfileEnrolled, TypeProfileUnenrolled,
		TypeCourseCreated, TypeCourseUpdated, TypeCourseDeleted,
		TypeAssignmentCreated, TypeAssignmentUpdated, TypeAssignmentDeleted,
		TypeExamCreated, TypeExamUpdated, TypeExamDeleted,
		TypeQuizCreated, TypeQuizUpdated, TypeQuizDeleted,
		TypeLabSessionCreated, TypeLabSessionUpdated, TypeLabSessionDeleted,
		TypeStudyTodoCreated, TypeStudyTodoUpdated, TypeStudyTodoDeleted,
		TypeChallengeAreaCreated, TypeChallengeAreaUpdated, TypeChallengeAreaDeleted,
		TypeClassScheduleCreated, TypeClassScheduleUpdated, TypeClassScheduleDeleted,
	}

	for _, typ := range types {
		p, err := newPayload(typ)
		if err != nil {
			t.Errorf("newPayload(%q): %v", typ, err)
			continue
		}
		if p.EventType() != typ {
			t.Errorf("payload for %q reports %q", typ, p.EventType())
		}
	}
}
