package models

import "time"

// StatusPending is the status every todo starts with. The sts column is
// otherwise free-form text: the update form may write any label it wants.
const StatusPending = "Pending"

// Todo is one row of the todo table. Username is filled from the join with
// users on list/search reads and is empty elsewhere.
type Todo struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Detail   string    `json:"detail"`
	AuthorID int64     `json:"author_id"`
	Username string    `json:"username,omitempty"`
	Sts      string    `json:"sts"`
	DueDate  time.Time `json:"duedate"`
	Created  time.Time `json:"created"`
}

// TodoEvent is the Kafka payload recorded after a committed mutation
// (create, update, delete). The worker persists these to todo_events.
type TodoEvent struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"` // create, update, delete
	TodoID      int64     `json:"todo_id"`
	AuthorID    int64     `json:"author_id"`
	Title       string    `json:"title,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
