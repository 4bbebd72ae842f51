package model

import "time"

// VehicleEntry is a vehicle or visitor passing through the gate.
type VehicleEntry struct {
	Meta
	AccessType       string     `json:"accessType"`
	DriverName       string     `json:"driverName"`
	Company          string     `json:"company,omitempty"`
	Supplier         string     `json:"supplier,omitempty"`
	OperationType    string     `json:"operationType,omitempty"`
	OrderNumber      string     `json:"orderNumber,omitempty"`
	VehiclePlate     string     `json:"vehiclePlate,omitempty"`
	TrailerPlate     string     `json:"trailerPlate,omitempty"`
	IsTruck          bool       `json:"isTruck"`
	DocumentNumber   string     `json:"documentNumber,omitempty"`
	VisitReason      string     `json:"visitReason,omitempty"`
	VisitedPerson    string     `json:"visitedPerson,omitempty"`
	Status           string     `json:"status"`
	RejectionReason  string     `json:"rejectionReason,omitempty"`
	EntryTime        time.Time  `json:"entryTime"`
	ExitTime         *time.Time `json:"exitTime,omitempty"`
	Volumes          int        `json:"volumes,omitempty"`
	Sector           string     `json:"sector,omitempty"`
	Observations     string     `json:"observations,omitempty"`
	ExitObservations string     `json:"exitObservations,omitempty"`
	OperatorName     string     `json:"operatorName,omitempty"`
	DeviceName       string     `json:"deviceName,omitempty"`
	AuthorizedBy     string     `json:"authorizedBy,omitempty"`
	Origin           string     `json:"origin,omitempty"`
	// Photos holds encoded images (data URLs). Large; entries are pushed one
	// record per request.
	Photos []string `json:"photos,omitempty"`
	// Draft is UI state that never leaves the device.
	Draft bool `json:"draft,omitempty"`
}

// BreakfastRecord is one person on the daily breakfast list.
type BreakfastRecord struct {
	Meta
	PersonName    string     `json:"personName"`
	BreakfastType string     `json:"breakfastType,omitempty"`
	Status        string     `json:"status"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
	OperatorName  string     `json:"operatorName,omitempty"`
	Date          string     `json:"date"`
	Observations  string     `json:"observations,omitempty"`
	Origin        string     `json:"origin,omitempty"`
}

// PackageRecord is a delivery received at the gate.
type PackageRecord struct {
	Meta
	DeliveryCompany string     `json:"deliveryCompany"`
	RecipientName   string     `json:"recipientName"`
	Description     string     `json:"description,omitempty"`
	OperatorName    string     `json:"operatorName,omitempty"`
	ReceivedAt      time.Time  `json:"receivedAt"`
	Status          string     `json:"status"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
	DeliveredTo     string     `json:"deliveredTo,omitempty"`
	PickupType      string     `json:"pickupType,omitempty"`
}

// Meter is a utility meter that gets read periodically.
type Meter struct {
	Meta
	Name       string `json:"name"`
	Type       string `json:"type"`
	Unit       string `json:"unit"`
	CustomUnit string `json:"customUnit,omitempty"`
	Active     bool   `json:"active"`
}

// MeterReading is a single reading of a Meter.
type MeterReading struct {
	Meta
	MeterID     string    `json:"meterId"`
	Value       float64   `json:"value"`
	Consumption float64   `json:"consumption"`
	Observation string    `json:"observation,omitempty"`
	Operator    string    `json:"operator,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// PatrolRecord is a security round.
type PatrolRecord struct {
	Meta
	Date            string     `json:"date"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	Guard           string     `json:"guard"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
}

// WorkShift is an operator's time-clock record for one day.
type WorkShift struct {
	Meta
	OperatorName string     `json:"operatorName"`
	Date         string     `json:"date"`
	ClockIn      *time.Time `json:"clockIn,omitempty"`
	BreakStart   *time.Time `json:"breakStart,omitempty"`
	BreakEnd     *time.Time `json:"breakEnd,omitempty"`
	ClockOut     *time.Time `json:"clockOut,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// AppLog is an audit trail entry. Logs are authoritative locally and are
// only ever pushed.
type AppLog struct {
	Meta
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
	Module      string    `json:"module"`
	Action      string    `json:"action"`
	ReferenceID string    `json:"referenceId,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// SectorContact is a phone contact shown on the dashboard.
type SectorContact struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Settings is the per-account singleton configuration record.
type Settings struct {
	CompanyName    string          `json:"companyName"`
	DeviceName     string          `json:"deviceName"`
	Theme          string          `json:"theme"`
	FontSize       string          `json:"fontSize"`
	SectorContacts []SectorContact `json:"sectorContacts"`
	Synced         bool            `json:"synced"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DefaultSettings returns the settings used before anything was saved.
func DefaultSettings() Settings {
	return Settings{
		CompanyName: "Portaria PX",
		DeviceName:  "Estação Principal",
		Theme:       "light",
		FontSize:    "medium",
		SectorContacts: []SectorContact{
			{ID: "1", Name: "Logística", Number: "5500000000000"},
			{ID: "2", Name: "Almoxarifado", Number: "5500000000000"},
		},
		Synced: true,
	}
}
