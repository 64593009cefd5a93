package model

import "github.com/google/uuid"

type Doctor struct {
	Base
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Name        string     `db:"name" json:"name"`
	SpecialtyID *uuid.UUID `db:"specialty_id" json:"specialty_id,omitempty"`
}

type LabTechnician struct {
	Base
	UserID uuid.UUID `db:"user_id" json:"user_id"`
	Name   string    `db:"name" json:"name"`
}
