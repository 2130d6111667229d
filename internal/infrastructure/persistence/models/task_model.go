package models

// TaskStateModel is the row shape for the Adaptive Task Machine's
// per-(user, room) slot-filling state. It is ephemeral (roughly a
// one-hour TTL enforced by the caller, not the store).
type TaskStateModel struct {
	UserID        string `gorm:"primaryKey;size:64"`
	RoomID        string `gorm:"primaryKey;size:64"`
	Mode          string `gorm:"size:16"`
	Status        string `gorm:"size:24"`
	Action        string `gorm:"size:64"`
	Parameters    string `gorm:"type:text"` // JSON encoded map[string]interface{}
	MissingSlots  string `gorm:"type:text"` // JSON encoded []string
	CreatedAtUnix int64
	LastPrompt    string `gorm:"type:text"`
}

func (TaskStateModel) TableName() string {
	return "task_states"
}

// ResultSetModel is the row shape for the last cached search-result list
// for a (user, room, action) triple.
type ResultSetModel struct {
	UserID        string `gorm:"primaryKey;size:64"`
	RoomID        string `gorm:"primaryKey;size:64"`
	Action        string `gorm:"primaryKey;size:64"`
	Options       string `gorm:"type:text"` // JSON encoded []map[string]interface{}
	Metadata      string `gorm:"type:text"` // JSON encoded map[string]interface{}
	CreatedAtUnix int64
}

func (ResultSetModel) TableName() string {
	return "result_sets"
}
