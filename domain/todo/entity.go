package todo

import "time"

// Status represents the lifecycle tag of a todo.
type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOngoing, StatusCompleted, StatusDeleted:
		return true
	}
	return false
}

// Todo is the single persisted task entity.
type Todo struct {
	ID          string    `gorm:"primarykey;size:36" json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `gorm:"size:16;not null;default:ongoing" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Todo model.
func (Todo) TableName() string {
	return "todos"
}

// Draft carries the fields accepted when creating a todo.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Validate checks the values carried by the patch.
func (p Patch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{
			Field:   "status",
			Message: "Todo validation failed: status: `" + string(*p.Status) + "` is not a valid enum value for path `status`",
		}
	}
	return nil
}

// Apply overlays the present fields of the patch onto t.
func (p Patch) Apply(t *Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// Fields returns the column updates for the patch, keyed by column name.
func (p Patch) Fields() map[string]any {
	fields := make(map[string]any, 3)
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Status != nil {
		fields["status"] = string(*p.Status)
	}
	return fields
}

// NewTodo builds a todo from a draft with the default status.
func NewTodo(id string, d Draft, now time.Time) *Todo {
	return &Todo{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Status:      StatusOngoing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// StatusPtr returns a pointer to s, handy for building patches.
func StatusPtr(s Status) *Status {
	return &s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
