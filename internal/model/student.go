package model

import "github.com/google/uuid"

// Student is a read-only directory record. Student CRUD lives in the
// main exstem backend; this service only resolves names and institute
// membership for grouping and leaderboard display.
type Student struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	InstituteID uuid.UUID `json:"institute_id"`
}

// Institute is a read-only directory record.
type Institute struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
