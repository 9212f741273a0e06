package vnats

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type strings. The dotted string doubles as the wire subject and is
// stable for a given event class; it is never used for structural lookup
// beyond selecting the payload variant on decode.
const (
	TypeProfileCreated    = "academic.profile.created"
	TypeProfileUpdated    = "academic.profile.updated"
	TypeProfileEnrolled   = "academic.profile.enrolled"
	TypeProfileUnenrolled = "academic.profile.unenrolled"

	TypeCourseCreated = "academic.course.created"
	TypeCourseUpdated = "academic.course.updated"
	TypeCourseDeleted = "academic.course.deleted"

	TypeAssignmentCreated = "academic.assignment.created"
	TypeAssignmentUpdated = "academic.assignment.updated"
	TypeAssignmentDeleted = "academic.assignment.deleted"

	TypeExamCreated = "academic.exam.created"
	TypeExamUpdated = "academic.exam.updated"
	TypeExamDeleted = "academic.exam.deleted"

	TypeQuizCreated = "academic.quiz.created"
	TypeQuizUpdated = "academic.quiz.updated"
	TypeQuizDeleted = "academic.quiz.deleted"

	TypeLabSessionCreated = "academic.lab.created"
	TypeLabSessionUpdated = "academic.lab.updated"
	TypeLabSessionDeleted = "academic.lab.deleted"

	TypeStudyTodoCreated = "academic.study.created"
	TypeStudyTodoUpdated = "academic.study.updated"
	TypeStudyTodoDeleted = "academic.study.deleted"

	TypeChallengeAreaCreated = "academic.challenge.created"
	TypeChallengeAreaUpdated = "academic.challenge.updated"
	TypeChallengeAreaDeleted = "academic.challenge.deleted"

	TypeClassScheduleCreated = "academic.schedule.created"
	TypeClassScheduleUpdated = "academic.schedule.updated"
	TypeClassScheduleDeleted = "academic.schedule.deleted"
)

// Metadata carries tracing and correlation context. It is purely
// descriptive and never affects routing or retry behavior.
type Metadata struct {
	// SourceService is the service that generated the event. Required.
	SourceService string `json:"source_service"`

	// CorrelationID links related events.
	CorrelationID string `json:"correlation_id,omitempty"`

	// CausationID is the ID of the event that caused this one.
	CausationID string `json:"causation_id,omitempty"`

	// UserID is the user who triggered the event.
	UserID string `json:"user_id,omitempty"`

	// InstitutionID isolates multi-tenant data.
	InstitutionID string `json:"institution_id,omitempty"`

	// TraceContext carries distributed trace propagation headers.
	TraceContext map[string]string `json:"trace_context,omitempty"`
}

// Payload is the closed set of event payload variants. Each variant
// reports the type string it routes under.
type Payload interface {
	EventType() string
}

// Event is the top-level envelope wrapping a payload variant.
type Event struct {
	// ID is the globally unique event ID, used for idempotency and tracing.
	ID uuid.UUID

	// Type is the event type. Set from the payload when empty.
	Type string

	// Version is the event schema version.
	Version string

	// Timestamp is the creation time of the event, in UTC.
	Timestamp time.Time

	// Metadata is the tracing/correlation envelope.
	Metadata Metadata

	// Payload is the type-specific event body.
	Payload Payload
}

// New constructs an event for the payload with a fresh ID and timestamp.
func New(payload Payload, meta Metadata) Event {
	return Event{
		ID:        uuid.New(),
		Type:      payload.EventType(),
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
		Payload:   payload,
	}
}

func (e *Event) setDefaults() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Version == "" {
		e.Version = "1.0"
	}
	if e.Type == "" && e.Payload != nil {
		e.Type = e.Payload.EventType()
	}
}

// Validate checks the invariants required before publishing.
func (e *Event) Validate() error {
	if e.Payload == nil {
		return errors.New("vnats: event payload required")
	}
	if e.Metadata.SourceService == "" {
		return errors.New("vnats: metadata source_service required")
	}
	if e.Type != "" && e.Type != e.Payload.EventType() {
		return fmt.Errorf("vnats: event type %q does not match payload type %q",
			e.Type, e.Payload.EventType())
	}
	return nil
}

// envelope is the wire form of the common fields. Payload fields are
// flattened into the same JSON object.
type envelope struct {
	ID        uuid.UUID `json:"event_id"`
	Type      string    `json:"event_type"`
	Version   string    `json:"event_version"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
}

// Marshal encodes the event into its flat JSON wire form: envelope and
// payload fields merged into a single object. Sets the event ID, version
// and timestamp if not set.
func (e *Event) Marshal() ([]byte, error) {
	e.setDefaults()
	if err := e.Validate(); err != nil {
		return nil, err
	}

	pb, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(pb, &fields); err != nil {
		return nil, err
	}

	eb, err := json.Marshal(envelope{
		ID:        e.ID,
		Type:      e.Type,
		Version:   e.Version,
		Timestamp: e.Timestamp,
		Metadata:  e.Metadata,
	})
	if err != nil {
		return nil, err
	}

	env := map[string]json.RawMessage{}
	if err := json.Unmarshal(eb, &env); err != nil {
		return nil, err
	}

	// Envelope fields win over colliding payload fields.
	for k, v := range env {
		fields[k] = v
	}

	return json.Marshal(fields)
}

// Unmarshal decodes the flat JSON wire form into the event, selecting the
// payload variant by the event_type tag.
func (e *Event) Unmarshal(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	if env.Type == "" {
		return errors.New("vnats: missing event_type")
	}

	payload, err := newPayload(env.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, payload); err != nil {
		return err
	}

	e.ID = env.ID
	e.Type = env.Type
	e.Version = env.Version
	e.Timestamp = env.Timestamp
	e.Metadata = env.Metadata
	e.Payload = payload

	return nil
}

// Is returns true if the event is one of the passed types.
func (e *Event) Is(types ...string) bool {
	for _, t := range types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Date is a calendar date without a time component, encoded as YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Year, d.Month, d.Day = t.Year(), t.Month(), t.Day()
	return nil
}

// Profile events.

type ProfileCreated struct {
	StudentID          string     `json:"student_id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	InstitutionID      string     `json:"institution_id"`
	Major              string     `json:"major,omitempty"`
	Minor              string     `json:"minor,omitempty"`
	Year               int        `json:"year,omitempty"`
	EnrollmentStatus   string     `json:"enrollment_status"`
	StudentType        string     `json:"student_type"`
	MatriculationDate  time.Time  `json:"matriculation_date"`
	ExpectedGraduation *time.Time `json:"expected_graduation,omitempty"`
	CumulativeGPA      *float64   `json:"cumulative_gpa,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	EmergencyContact   string     `json:"emergency_contact,omitempty"`
	AcademicAdvisor    string     `json:"academic_advisor,omitempty"`
	ProfilePictureURL  string     `json:"profile_picture_url,omitempty"`
}

func (*ProfileCreated) EventType() string { return TypeProfileCreated }

type ProfileUpdated struct {
	StudentID      string         `json:"student_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*ProfileUpdated) EventType() string { return TypeProfileUpdated }

type ProfileEnrolled struct {
	StudentID        string    `json:"student_id"`
	CourseID         string    `json:"course_id"`
	EnrollmentDate   time.Time `json:"enrollment_date"`
	GradingBasis     string    `json:"grading_basis"`
	EnrollmentStatus string    `json:"enrollment_status"`
	FinalGrade       *float64  `json:"final_grade,omitempty"`
	LetterGrade      string    `json:"letter_grade,omitempty"`
}

func (*ProfileEnrolled) EventType() string { return TypeProfileEnrolled }

type ProfileUnenrolled struct {
	StudentID    string    `json:"student_id"`
	CourseID     string    `json:"course_id"`
	UnenrollDate time.Time `json:"unenroll_date"`
	Reason       string    `json:"reason,omitempty"`
	FinalGrade   *float64  `json:"final_grade,omitempty"`
	LetterGrade  string    `json:"letter_grade,omitempty"`
}

func (*ProfileUnenrolled) EventType() string { return TypeProfileUnenrolled }

// Course events.

type CourseCreated struct {
	CourseID           string     `json:"course_id"`
	Title              string     `json:"title"`
	Code               string     `json:"code"`
	Number             string     `json:"number"`
	Term               string     `json:"term"`
	Credits            int        `json:"credits"`
	Description        string     `json:"description"`
	InstructorName     string     `json:"instructor_name"`
	InstructorEmail    string     `json:"instructor_email"`
	InstitutionID      string     `json:"institution_id"`
	ComponentType      []string   `json:"component_type,omitempty"`
	Prerequisites      []string   `json:"prerequisites,omitempty"`
	GradingOptions     []string   `json:"grading_options,omitempty"`
	SyllabusURL        string     `json:"syllabus_url,omitempty"`
	LearningObjectives []string   `json:"learning_objectives,omitempty"`
	FinalExamDate      *time.Time `json:"final_exam_date,omitempty"`
}

func (*CourseCreated) EventType() string { return TypeCourseCreated }

type CourseUpdated struct {
	CourseID       string         `json:"course_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*CourseUpdated) EventType() string { return TypeCourseUpdated }

type CourseDeleted struct {
	CourseID       string `json:"course_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*CourseDeleted) EventType() string { return TypeCourseDeleted }

// Assignment events.

type AssignmentCreated struct {
	AssignmentID     string           `json:"assignment_id"`
	Title            string           `json:"title"`
	CourseID         string           `json:"course_id"`
	StudentID        string           `json:"student_id,omitempty"`
	Type             string           `json:"type"`
	Description      string           `json:"description"`
	DueDate          time.Time        `json:"due_date"`
	PointsPossible   int              `json:"points_possible"`
	PointsEarned     *float64         `json:"points_earned,omitempty"`
	PercentageGrade  *float64         `json:"percentage_grade,omitempty"`
	Weight           float64          `json:"weight"`
	SubmissionStatus string           `json:"submission_status"`
	SubmissionURL    string           `json:"submission_url,omitempty"`
	InstructionsURL  string           `json:"instructions_url,omitempty"`
	EstimatedHours   *int             `json:"estimated_hours,omitempty"`
	LatePenalty      string           `json:"late_penalty,omitempty"`
	Rubric           []map[string]any `json:"rubric,omitempty"`
}

func (*AssignmentCreated) EventType() string { return TypeAssignmentCreated }

type AssignmentUpdated struct {
	AssignmentID   string         `json:"assignment_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*AssignmentUpdated) EventType() string { return TypeAssignmentUpdated }

type AssignmentDeleted struct {
	AssignmentID   string `json:"assignment_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*AssignmentDeleted) EventType() string { return TypeAssignmentDeleted }

// Exam events.

type ExamCreated struct {
	ExamID           string    `json:"exam_id"`
	Title            string    `json:"title"`
	CourseID         string    `json:"course_id"`
	StudentID        string    `json:"student_id,omitempty"`
	ExamType         string    `json:"exam_type"`
	Date             time.Time `json:"date"`
	DurationMinutes  int       `json:"duration_minutes"`
	Location         string    `json:"location"`
	PointsPossible   int       `json:"points_possible"`
	PointsEarned     *float64  `json:"points_earned,omitempty"`
	PercentageGrade  *float64  `json:"percentage_grade,omitempty"`
	Weight           float64   `json:"weight"`
	TopicsCovered    []string  `json:"topics_covered,omitempty"`
	Format           string    `json:"format"`
	OpenBook         bool      `json:"open_book"`
	AllowedMaterials []string  `json:"allowed_materials,omitempty"`
	PreparationNotes string    `json:"preparation_notes,omitempty"`
}

func (*ExamCreated) EventType() string { return TypeExamCreated }

type ExamUpdated struct {
	ExamID         string         `json:"exam_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*ExamUpdated) EventType() string { return TypeExamUpdated }

type ExamDeleted struct {
	ExamID         string `json:"exam_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*ExamDeleted) EventType() string { return TypeExamDeleted }

// Quiz events.

type QuizCreated struct {
	QuizID          string    `json:"quiz_id"`
	Title           string    `json:"title"`
	CourseID        string    `json:"course_id"`
	StudentID       string    `json:"student_id,omitempty"`
	QuizNumber      int       `json:"quiz_number"`
	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	PointsPossible  int       `json:"points_possible"`
	PointsEarned    *float64  `json:"points_earned,omitempty"`
	PercentageGrade *float64  `json:"percentage_grade,omitempty"`
	Weight          float64   `json:"weight"`
	TopicsCovered   []string  `json:"topics_covered,omitempty"`
	Format          string    `json:"format"`
	AttemptsAllowed int       `json:"attempts_allowed"`
	AutoGraded      bool      `json:"auto_graded"`
}

func (*QuizCreated) EventType() string { return TypeQuizCreated }

type QuizUpdated struct {
	QuizID         string         `json:"quiz_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*QuizUpdated) EventType() string { return TypeQuizUpdated }

type QuizDeleted struct {
	QuizID         string `json:"quiz_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*QuizDeleted) EventType() string { return TypeQuizDeleted }

// Lab session events.

type LabSessionCreated struct {
	LabID               string     `json:"lab_id"`
	Title               string     `json:"title"`
	CourseID            string     `json:"course_id"`
	StudentID           string     `json:"student_id,omitempty"`
	SessionNumber       int        `json:"session_number"`
	Date                time.Time  `json:"date"`
	DurationMinutes     int        `json:"duration_minutes"`
	Location            string     `json:"location"`
	InstructorName      string     `json:"instructor_name"`
	ExperimentTitle     string     `json:"experiment_title"`
	Objectives          []string   `json:"objectives,omitempty"`
	PreLabReading       string     `json:"pre_lab_reading,omitempty"`
	PreLabAssignmentDue *time.Time `json:"pre_lab_assignment_due,omitempty"`
	EquipmentNeeded     []string   `json:"equipment_needed,omitempty"`
	SafetyRequirements  []string   `json:"safety_requirements,omitempty"`
	SubmissionDeadline  *time.Time `json:"submission_deadline,omitempty"`
	PointsPossible      *int       `json:"points_possible,omitempty"`
	PointsEarned        *float64   `json:"points_earned,omitempty"`
}

func (*LabSessionCreated) EventType() string { return TypeLabSessionCreated }

type LabSessionUpdated struct {
	LabID          string         `json:"lab_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*LabSessionUpdated) EventType() string { return TypeLabSessionUpdated }

type LabSessionDeleted struct {
	LabID          string `json:"lab_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*LabSessionDeleted) EventType() string { return TypeLabSessionDeleted }

// Study todo events.

type StudyTodoCreated struct {
	TodoID           string     `json:"todo_id"`
	Title            string     `json:"title"`
	StudentID        string     `json:"student_id"`
	CourseID         string     `json:"course_id,omitempty"`
	Description      string     `json:"description"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	ActualMinutes    *int       `json:"actual_minutes,omitempty"`
	Context          []string   `json:"context,omitempty"`
	EnergyRequired   string     `json:"energy_required"`
	CreatedDate      time.Time  `json:"created_date"`
	CompletedDate    *time.Time `json:"completed_date,omitempty"`
	Recurrence       string     `json:"recurrence"`
	AIGenerated      bool       `json:"ai_generated"`
	Source           string     `json:"source"`
}

func (*StudyTodoCreated) EventType() string { return TypeStudyTodoCreated }

type StudyTodoUpdated struct {
	TodoID         string         `json:"todo_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*StudyTodoUpdated) EventType() string { return TypeStudyTodoUpdated }

type StudyTodoDeleted struct {
	TodoID         string `json:"todo_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*StudyTodoDeleted) EventType() string { return TypeStudyTodoDeleted }

// Challenge area events.

type ChallengeAreaCreated struct {
	ChallengeID      string     `json:"challenge_id"`
	Title            string     `json:"title"`
	StudentID        string     `json:"student_id"`
	CourseID         string     `json:"course_id,omitempty"`
	Description      string     `json:"description"`
	Severity         string     `json:"severity"`
	IdentifiedDate   time.Time  `json:"identified_date"`
	DetectionMethod  string     `json:"detection_method"`
	Status           string     `json:"status"`
	ResolutionDate   *time.Time `json:"resolution_date,omitempty"`
	PerformanceTrend []float64  `json:"performance_trend,omitempty"`
	ConfidenceLevel  int        `json:"confidence_level"`
	RelatedTopics    []string   `json:"related_topics,omitempty"`
	ImprovementNotes string     `json:"improvement_notes,omitempty"`
}

func (*ChallengeAreaCreated) EventType() string { return TypeChallengeAreaCreated }

type ChallengeAreaUpdated struct {
	ChallengeID    string         `json:"challenge_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*ChallengeAreaUpdated) EventType() string { return TypeChallengeAreaUpdated }

type ChallengeAreaDeleted struct {
	ChallengeID    string `json:"challenge_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*ChallengeAreaDeleted) EventType() string { return TypeChallengeAreaDeleted }

// Class schedule events.

type ClassScheduleCreated struct {
	ScheduleID            string   `json:"schedule_id"`
	CourseID              string   `json:"course_id"`
	InstitutionID         string   `json:"institution_id"`
	DaysOfWeek            []string `json:"days_of_week"`
	StartTime             string   `json:"start_time"`
	EndTime               string   `json:"end_time"`
	Building              string   `json:"building"`
	Room                  string   `json:"room"`
	Campus                string   `json:"campus"`
	Format                string   `json:"format"`
	MeetingURL            string   `json:"meeting_url,omitempty"`
	InstructorOfficeHours []string `json:"instructor_office_hours,omitempty"`
	SectionNumber         string   `json:"section_number"`
	EnrollmentCapacity    int      `json:"enrollment_capacity"`
	TermStartDate         Date     `json:"term_start_date"`
	TermEndDate           Date     `json:"term_end_date"`
}

func (*ClassScheduleCreated) EventType() string { return TypeClassScheduleCreated }

type ClassScheduleUpdated struct {
	ScheduleID     string         `json:"schedule_id"`
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`
}

func (*ClassScheduleUpdated) EventType() string { return TypeClassScheduleUpdated }

type ClassScheduleDeleted struct {
	ScheduleID     string `json:"schedule_id"`
	SoftDelete     bool   `json:"soft_delete"`
	DeletionReason string `json:"deletion_reason,omitempty"`
}

func (*ClassScheduleDeleted) EventType() string { return TypeClassScheduleDeleted }

// payloadByType is the closed variant table used to select a payload type
// on decode.
var payloadByType = map[string]func() Payload{
	TypeProfileCreated:    func() Payload { return &ProfileCreated{} },
	TypeProfileUpdated:    func() Payload { return &ProfileUpdated{} },
	TypeProfileEnrolled:   func() Payload { return &ProfileEnrolled{} },
	TypeProfileUnenrolled: func() Payload { return &ProfileUnenrolled{} },

	TypeCourseCreated: func() Payload { return &CourseCreated{} },
	TypeCourseUpdated: func() Payload { return &CourseUpdated{} },
	TypeCourseDeleted: func() Payload { return &CourseDeleted{} },

	TypeAssignmentCreated: func() Payload { return &AssignmentCreated{} },
	TypeAssignmentUpdated: func() Payload { return &AssignmentUpdated{} },
	TypeAssignmentDeleted: func() Payload { return &AssignmentDeleted{} },

	TypeExamCreated: func() Payload { return &ExamCreated{} },
	TypeExamUpdated: func() Payload { return &ExamUpdated{} },
	TypeExamDeleted: func() Payload { return &ExamDeleted{} },

	TypeQuizCreated: func() Payload { return &QuizCreated{} },
	TypeQuizUpdated: func() Payload { return &QuizUpdated{} },
	TypeQuizDeleted: func() Payload { return &QuizDeleted{} },

	TypeLabSessionCreated: func() Payload { return &LabSessionCreated{} },
	TypeLabSessionUpdated: func() Payload { return &LabSessionUpdated{} },
	TypeLabSessionDeleted: func() Payload { return &LabSessionDeleted{} },

	TypeStudyTodoCreated: func() Payload { return &StudyTodoCreated{} },
	TypeStudyTodoUpdated: func() Payload { return &StudyTodoUpdated{} },
	TypeStudyTodoDeleted: func() Payload { return &StudyTodoDeleted{} },

	TypeChallengeAreaCreated: func() Payload { return &ChallengeAreaCreated{} },
	TypeChallengeAreaUpdated: func() Payload { return &ChallengeAreaUpdated{} },
	TypeChallengeAreaDeleted: func() Payload { return &ChallengeAreaDeleted{} },

	TypeClassScheduleCreated: func() Payload { return &ClassScheduleCreated{} },
	TypeClassScheduleUpdated: func() Payload { return &ClassScheduleUpdated{} },
	TypeClassScheduleDeleted: func() Payload { return &ClassScheduleDeleted{} },
}

func newPayload(eventType string) (Payload, error) {
	f, ok := payloadByType[eventType]
	if !ok {
		return nil, fmt.Errorf("vnats: unknown event type %q", eventType)
	}
	return f(), nil
}
