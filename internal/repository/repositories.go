package repository

// Repositories bundles one store's implementations so services can be wired
// against postgres or the in-memory store alike.
type Repositories struct {
	Tx             Transactor
	Appointments   AppointmentRepository
	Rooms          RoomRepository
	Schedules      ScheduleRepository
	Staff          StaffRepository
	MedicalRecords MedicalRecordRepository
	Notifications  NotificationRepository
	Lab            LabRepository
}
