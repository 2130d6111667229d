package entity

// Intent is the structured result of natural-language parsing (spec §3,
// §4.G): an action with its extracted parameters, a confidence score, and
// — when the action cannot yet be dispatched — the slots still missing
// and the clarifying question to ask the user for them.
type Intent struct {
	Action              string
	Parameters          map[string]interface{}
	Confidence          float64
	MissingSlots        []string
	ClarifyingQuestion  string
	RawQuery            string
}

// NewIntent validates and constructs an Intent. Confidence is clamped to
// [0,1]; a non-empty MissingSlots requires a non-empty ClarifyingQuestion
// (spec §3 invariant).
func NewIntent(action string, parameters map[string]interface{}, confidence float64, missingSlots []string, clarifyingQuestion, rawQuery string) (*Intent, error) {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if len(missingSlots) > 0 && clarifyingQuestion == "" {
		return nil, ErrMissingSlotsRequireQuestion
	}
	if parameters == nil {
		parameters = make(map[string]interface{})
	}

	return &Intent{
		Action:             action,
		Parameters:         parameters,
		Confidence:         confidence,
		MissingSlots:       append([]string(nil), missingSlots...),
		ClarifyingQuestion: clarifyingQuestion,
		RawQuery:           rawQuery,
	}, nil
}

// IsComplete reports whether the intent carries everything needed for
// dispatch without further clarification.
func (i *Intent) IsComplete() bool {
	return len(i.MissingSlots) == 0
}

// TaskStatus is the lifecycle state of an Adaptive Task Machine slot-fill.
type TaskStatus string

const (
	TaskAwaitingSlots TaskStatus = "awaiting_slots"
	TaskReady         TaskStatus = "ready"
)

// TaskState is the per-(user, room) slot-filling state the Adaptive Task
// Machine maintains while gathering the parameters an intent needs before
// it can be verified and dispatched (spec §3, §4.H). It is ephemeral,
// with a TTL of roughly one hour.
type TaskState struct {
	UserID       string
	RoomID       string
	Mode         string // always "intent"
	Status       TaskStatus
	Action       string
	Parameters   map[string]interface{}
	MissingSlots []string
	CreatedAtUnix int64
	LastPrompt   string
}

// NewTaskState creates a fresh task state from a parsed intent.
func NewTaskState(userID, roomID string, intent *Intent, createdAtUnix int64) *TaskState {
	status := TaskReady
	if len(intent.MissingSlots) > 0 {
		status = TaskAwaitingSlots
	}
	return &TaskState{
		UserID:        userID,
		RoomID:        roomID,
		Mode:          "intent",
		Status:        status,
		Action:        intent.Action,
		Parameters:    copyParams(intent.Parameters),
		MissingSlots:  append([]string(nil), intent.MissingSlots...),
		CreatedAtUnix: createdAtUnix,
		LastPrompt:    intent.ClarifyingQuestion,
	}
}

// Fill merges newly extracted slot values into the task, removing them
// from MissingSlots, and transitions to Ready once nothing remains
// outstanding (spec §3 invariant: Status == Ready iff MissingSlots empty).
func (t *TaskState) Fill(values map[string]interface{}) {
	for k, v := range values {
		t.Parameters[k] = v
	}
	remaining := t.MissingSlots[:0]
	for _, slot := range t.MissingSlots {
		if _, filled := values[slot]; !filled {
			remaining = append(remaining, slot)
		}
	}
	t.MissingSlots = remaining
	if len(t.MissingSlots) == 0 {
		t.Status = TaskReady
	} else {
		t.Status = TaskAwaitingSlots
	}
}

func (t *TaskState) IsReady() bool { return t.Status == TaskReady }

func copyParams(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ResultSet is the last search-result list cached for a (user, room,
// action) triple (spec §3), used to resolve follow-ups such as "book
// option 2". TTL is roughly one hour.
type ResultSet struct {
	UserID        string
	RoomID        string
	Action        string
	Options       []map[string]interface{}
	Metadata      map[string]interface{} // origin, destination, dates, ...
	CreatedAtUnix int64
}

func NewResultSet(userID, roomID, action string, options []map[string]interface{}, metadata map[string]interface{}, createdAtUnix int64) *ResultSet {
	return &ResultSet{
		UserID:        userID,
		RoomID:        roomID,
		Action:        action,
		Options:       options,
		Metadata:      metadata,
		CreatedAtUnix: createdAtUnix,
	}
}

// Option returns the zero-indexed option, reporting false if index is
// out of range — callers translate 1-based user phrasing ("option 2")
// before calling this.
func (r *ResultSet) Option(index int) (map[string]interface{}, bool) {
	if index < 0 || index >= len(r.Options) {
		return nil, false
	}
	return r.Options[index], true
}
