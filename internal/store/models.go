package store

import "time"

type User struct {
	ID           int
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Department   string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Department struct {
	ID        int
	Name      string
	Head      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Delegation struct {
	ID          int
	Title       string
	Description string
	AssignedTo  string
	AssignedBy  string
	Department  string
	DueDate     time.Time
	Status      string
	Done        bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Checklist struct {
	ID         int
	Question   string
	AssignedTo string
	DueDate    time.Time
	Done       bool
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Minute struct {
	ID          int
	Title       string
	MeetingDate time.Time
	Attendees   []string
	Decisions   string
	FollowUp    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Ticket struct {
	ID          int
	Subject     string
	Body        string
	Requester   string
	Assignee    string
	Priority    string
	Status      string
	Attachments []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Todo struct {
	ID        int
	Text      string
	Owner     string
	DueDate   time.Time
	Done      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChatMessage struct {
	ID        int
	Channel   string
	Author    string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID        int
	Recipient string
	Role      string
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Order is a grouped entity: every line is its own spreadsheet row and
// all rows of an order share the party id. The customer fields repeat
// on each row; the first row of the group is authoritative.
type Order struct {
	PartyID   int
	Customer  string
	Address   string
	Phone     string
	OrderDate time.Time
	Lines     []OrderLine
}

// StageTimes holds the planned and actual timestamps of one
// fulfillment stage.
type StageTimes struct {
	Planned time.Time
	Actual  time.Time
}

type OrderLine struct {
	ID        int
	Item      string
	Quantity  float64
	UnitCost  float64
	TotalCost float64
	Status    string
	Notes     string
	Stages    [pipelineStages]StageTimes
	CreatedAt time.Time
	UpdatedAt time.Time
}
