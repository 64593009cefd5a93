package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	tm := time.Date(2024, 5, 14, 23, 30, 0, 0, ict)

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"date string", "2024-05-14", "2024-05-14"},
		{"unpadded", "2024-5-4", "2024-05-04"},
		{"iso timestamp", "2024-05-14T17:00:00.000Z", "2024-05-14"},
		{"sql timestamp", "2024-05-14 08:00:00+07", "2024-05-14"},
		{"verbose", "Tue May 14 2024 00:00:00 GMT+0700 (Indochina Time)", "2024-05-14"},
		{"time keeps own zone", tm, "2024-05-14"},
		{"time pointer", &tm, "2024-05-14"},
		{"bytes", []byte("2024-05-14"), "2024-05-14"},
		{"shift date", ShiftDate("2024-05-14"), "2024-05-14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []any{"yesterday", "", nil, 42, time.Time{}} {
		_, err := NormalizeDate(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestNormalizeClock(t *testing.T) {
	tests := []struct {
		input any
		want  string
	}{
		{"08:00:00", "08:00:00"},
		{"8:00", "08:00:00"},
		{"08:00:00.123456", "08:00:00"},
		{"2:30 PM", "14:30:00"},
		{"09:15:00+07", "09:15:00"},
		{"2024-05-14T10:45:00Z", "10:45:00"},
		{time.Date(0, 1, 1, 17, 5, 9, 0, time.UTC), "17:05:09"},
		{[]byte("12:00:00"), "12:00:00"},
		{TimeOfDay("23:59:59"), "23:59:59"},
	}
	for _, tt := range tests {
		got, err := NormalizeClock(tt.input)
		require.NoError(t, err, "%v", tt.input)
		assert.Equal(t, tt.want, got, "%v", tt.input)
	}

	_, err := NormalizeClock("noon")
	assert.Error(t, err)
}

func TestSchedule_Validate(t *testing.T) {
	doc, tech := uuid.New(), uuid.New()

	ok := Schedule{DoctorID: &doc, StartTime: "08:00:00", EndTime: "12:00:00"}
	assert.NoError(t, ok.Validate())

	both := ok
	both.LabTechnicianID = &tech
	assert.Error(t, both.Validate())

	neither := Schedule{StartTime: "08:00:00", EndTime: "12:00:00"}
	assert.Error(t, neither.Validate())

	backwards := Schedule{DoctorID: &doc, StartTime: "12:00:00", EndTime: "08:00:00"}
	assert.Error(t, backwards.Validate())
}

func TestFlowStatus_Transitions(t *testing.T) {
	assert.True(t, FlowWaiting.CanTransitionTo(FlowExamining))
	assert.True(t, FlowWaiting.CanTransitionTo(FlowExamined))
	assert.True(t, FlowExamining.CanTransitionTo(FlowWaiting))
	assert.True(t, FlowExamining.CanTransitionTo(FlowExamined))
	assert.False(t, FlowExamined.CanTransitionTo(FlowWaiting))
	assert.False(t, FlowExamined.CanTransitionTo(FlowExamining))
	assert.False(t, FlowWaiting.CanTransitionTo(FlowWaiting))
	assert.True(t, FlowExamined.Terminal())
	assert.False(t, FlowStatus("discharged").Valid())
}

func TestRoom_Matches(t *testing.T) {
	cardio := uuid.New()
	general := Room{Type: RoomTypeExamination}
	specialised := Room{Type: RoomTypeExamination, SpecialtyID: &cardio}

	assert.True(t, general.Matches(RoomTypeExamination, nil))
	assert.True(t, specialised.Matches(RoomTypeExamination, nil))
	assert.True(t, specialised.Matches(RoomTypeExamination, &cardio))
	assert.False(t, general.Matches(RoomTypeExamination, &cardio))
	assert.False(t, specialised.Matches(RoomTypeLaboratory, &cardio))
}
