package schema

import "github.com/hyperengineering/gatelog/model"

func meta(fields ...Field) []Field {
	return append([]Field{Same(IDColumn), Same(CreatedColumn), Same(UpdatedColumn)}, fields...)
}

// Translators for every module.
var (
	Entries = NewTranslator[model.VehicleEntry](meta(
		F("accessType", "access_type"),
		F("driverName", "driver_name"),
		Same("company"),
		Same("supplier"),
		F("operationType", "operation_type"),
		F("orderNumber", "order_number"),
		F("vehiclePlate", "vehicle_plate"),
		F("trailerPlate", "trailer_plate"),
		F("isTruck", "is_truck"),
		F("documentNumber", "document_number"),
		F("visitReason", "visit_reason"),
		F("visitedPerson", "visited_person"),
		Same("status"),
		F("rejectionReason", "rejection_reason"),
		F("entryTime", "entry_time"),
		F("exitTime", "exit_time"),
		Same("volumes"),
		Same("sector"),
		Same("observations"),
		F("exitObservations", "exit_observations"),
		F("operatorName", "operator_name"),
		F("deviceName", "device_name"),
		F("authorizedBy", "authorized_by"),
		Same("origin"),
		Same("photos"),
	)...)

	Breakfast = NewTranslator[model.BreakfastRecord](meta(
		F("personName", "person_name"),
		F("breakfastType", "breakfast_type"),
		Same("status"),
		F("deliveredAt", "delivered_at"),
		F("operatorName", "operator_name"),
		Same("date"),
		Same("observations"),
		Same("origin"),
	)...)

	Packages = NewTranslator[model.PackageRecord](meta(
		F("deliveryCompany", "delivery_company"),
		F("recipientName", "recipient_name"),
		Same("description"),
		F("operatorName", "operator_name"),
		F("receivedAt", "received_at"),
		Same("status"),
		F("deliveredAt", "delivered_at"),
		F("deliveredTo", "delivered_to"),
		F("pickupType", "pickup_type"),
	)...)

	Meters = NewTranslator[model.Meter](meta(
		Same("name"),
		Same("type"),
		Same("unit"),
		F("customUnit", "custom_unit"),
		Same("active"),
	)...)

	MeterReadings = NewTranslator[model.MeterReading](meta(
		F("meterId", "meter_id"),
		Same("value"),
		Same("consumption"),
		Same("observation"),
		Same("operator"),
		Same("timestamp"),
	)...)

	// Patrol columns keep the Portuguese names of the shared database.
	Patrols = NewTranslator[model.PatrolRecord](meta(
		F("date", "data"),
		F("startTime", "hora_inicio"),
		F("endTime", "hora_fim"),
		F("durationMinutes", "duracao_minutos"),
		F("guard", "porteiro"),
		Same("status"),
		F("notes", "observacoes"),
		F("created_at", "criado_em"),
	)...)

	Shifts = NewTranslator[model.WorkShift](meta(
		F("operatorName", "operator_name"),
		Same("date"),
		F("clockIn", "clock_in"),
		F("breakStart", "break_start"),
		F("breakEnd", "break_end"),
		F("clockOut", "clock_out"),
		Same("notes"),
	)...)

	// app_logs has no updated_at column.
	Logs = NewTranslator[model.AppLog](
		Same(IDColumn),
		Same(CreatedColumn),
		Same("timestamp"),
		F("user", "user_name"),
		Same("module"),
		Same("action"),
		F("referenceId", "reference_id"),
		Same("details"),
	)

	// Settings rows are keyed by owner, not by id.
	Settings = NewTranslator[model.Settings](
		F("companyName", "company_name"),
		F("deviceName", "device_name"),
		Same("theme"),
		F("fontSize", "font_size"),
		F("sectorContacts", "sector_contacts"),
		Same(UpdatedColumn),
	)
)
