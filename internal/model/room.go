package model

import "github.com/google/uuid"

type RoomType string

const (
	RoomTypeExamination RoomType = "examination"
	RoomTypeLaboratory  RoomType = "laboratory"
	RoomTypeWard        RoomType = "ward"
)

type RoomStatus string

const (
	RoomAvailable RoomStatus = "available"
	RoomOccupied  RoomStatus = "occupied"
)

type Room struct {
	Base
	RoomNumber  string     `db:"room_number" json:"room_number"`
	Capacity    int        `db:"capacity" json:"capacity"`
	Type        RoomType   `db:"type" json:"type"`
	Status      RoomStatus `db:"status" json:"status"`
	SpecialtyID *uuid.UUID `db:"specialty_id" json:"specialty_id,omitempty"`
}

// Matches reports whether the room can serve a request of the given type and
// specialty. A nil specialty accepts any room of the type.
func (r *Room) Matches(roomType RoomType, specialtyID *uuid.UUID) bool {
	if r.Type != roomType {
		return false
	}
	if specialtyID == nil {
		return true
	}
	return r.SpecialtyID != nil && *r.SpecialtyID == *specialtyID
}
