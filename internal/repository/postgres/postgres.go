package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hospital-api/internal/repository"
)

type appointmentRepository struct {
	*BaseRepository
}

type roomRepository struct {
	*BaseRepository
}

type scheduleRepository struct {
	*BaseRepository
}

type staffRepository struct {
	*BaseRepository
}

type medicalRecordRepository struct {
	*BaseRepository
}

type notificationRepository struct {
	*BaseRepository
}

type labRepository struct {
	*BaseRepository
}

func NewAppointmentRepository(base *BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func NewRoomRepository(base *BaseRepository) repository.RoomRepository {
	return &roomRepository{base}
}

func NewScheduleRepository(base *BaseRepository) repository.ScheduleRepository {
	return &scheduleRepository{base}
}

func NewStaffRepository(base *BaseRepository) repository.StaffRepository {
	return &staffRepository{base}
}

func NewMedicalRecordRepository(base *BaseRepository) repository.MedicalRecordRepository {
	return &medicalRecordRepository{base}
}

func NewNotificationRepository(base *BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func NewLabRepository(base *BaseRepository) repository.LabRepository {
	return &labRepository{base}
}

// NewRepositories wires every postgres repository onto one pool.
func NewRepositories(db *sqlx.DB) *repository.Repositories {
	base := NewBaseRepository(db)
	return &repository.Repositories{
		Tx:             base,
		Appointments:   NewAppointmentRepository(base),
		Rooms:          NewRoomRepository(base),
		Schedules:      NewScheduleRepository(base),
		Staff:          NewStaffRepository(base),
		MedicalRecords: NewMedicalRecordRepository(base),
		Notifications:  NewNotificationRepository(base),
		Lab:            NewLabRepository(base),
	}
}
