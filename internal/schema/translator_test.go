package schema_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hyperengineering/gatelog/internal/schema"
	"github.com/hyperengineering/gatelog/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2025, 3, 10, 8, 15, 30, 250_000_000, time.UTC)

func TestToRemote_DropsLocalOnlyFields(t *testing.T) {
	entry := model.VehicleEntry{
		Meta:       model.Meta{ID: "e1", Synced: true, CreatedAt: ts, UpdatedAt: ts},
		DriverName: "João",
		IsTruck:    true,
		Draft:      true,
	}

	row, err := schema.Entries.ToRemote(entry)
	require.NoError(t, err)

	assert.Equal(t, "e1", row["id"])
	assert.Equal(t, "João", row["driver_name"])
	assert.Equal(t, true, row["is_truck"])
	assert.NotContains(t, row, "synced")
	assert.NotContains(t, row, "draft")
	assert.NotContains(t, row, "driverName")
}

func TestToRemote_EmitsEveryDeclaredColumn(t *testing.T) {
	row, err := schema.Packages.ToRemote(model.PackageRecord{Meta: model.Meta{ID: "p1"}})
	require.NoError(t, err)

	for _, col := range schema.Packages.Columns() {
		assert.Contains(t, row, col)
	}
	assert.Nil(t, row["delivered_at"], "absent optional value is null")
}

func TestPatrols_UsePortugueseColumns(t *testing.T) {
	end := ts.Add(45 * time.Minute)
	p := model.PatrolRecord{
		Meta:            model.Meta{ID: "r1", CreatedAt: ts, UpdatedAt: ts},
		Date:            "2025-03-10",
		StartTime:       ts,
		EndTime:         &end,
		DurationMinutes: 45,
		Guard:           "Carlos",
		Status:          "completed",
		Notes:           "portão 2 ok",
	}

	row, err := schema.Patrols.ToRemote(p)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", row["data"])
	assert.Equal(t, "Carlos", row["porteiro"])
	assert.Equal(t, "portão 2 ok", row["observacoes"])
	assert.Equal(t, row["created_at"], row["criado_em"])
	assert.Contains(t, row, "hora_inicio")
	assert.Contains(t, row, "duracao_minutos")

	back, err := schema.Patrols.ToLocal(row)
	require.NoError(t, err)
	assert.Equal(t, p.Guard, back.Guard)
	assert.Equal(t, p.DurationMinutes, back.DurationMinutes)
	require.NotNil(t, back.EndTime)
	assert.True(t, end.Equal(*back.EndTime))
	assert.True(t, ts.Equal(back.StartTime))
}

func TestRoundTrip_PreservesDeclaredColumns(t *testing.T) {
	exit := ts.Add(time.Hour)
	in := model.VehicleEntry{
		Meta:         model.Meta{ID: "e1", CreatedAt: ts, UpdatedAt: ts},
		AccessType:   "truck",
		DriverName:   "Ana",
		VehiclePlate: "ABC1D23",
		IsTruck:      true,
		Status:       "exited",
		EntryTime:    ts,
		ExitTime:     &exit,
		Volumes:      12,
		Photos:       []string{"data:image/png;base64,AAAA"},
	}

	row, err := schema.Entries.ToRemote(in)
	require.NoError(t, err)
	out, err := schema.Entries.ToLocal(row)
	require.NoError(t, err)

	// synced is local-only and draft never leaves the device.
	in.Synced = false
	in.Draft = false
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
	assert.True(t, in.EntryTime.Equal(out.EntryTime))
	assert.True(t, in.ExitTime.Equal(*out.ExitTime))
	out.CreatedAt, out.UpdatedAt, out.EntryTime, out.ExitTime = in.CreatedAt, in.UpdatedAt, in.EntryTime, in.ExitTime
	assert.Equal(t, in, out)
}

func TestToLocal_DecodesWireJSON(t *testing.T) {
	// Shape returned by PostgREST: numbers as float64, times with offsets.
	var row schema.Row
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "m1",
		"user_id": "owner-1",
		"meter_id": "meter-9",
		"value": 1520.5,
		"consumption": 12,
		"timestamp": "2025-03-10T05:15:30.25-03:00",
		"created_at": "2025-03-10T08:15:30.25+00:00",
		"updated_at": "2025-03-10T08:15:30.25+00:00",
		"extra": "ignored"
	}`), &row))

	got, err := schema.MeterReadings.ToLocal(row)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "meter-9", got.MeterID)
	assert.Equal(t, 1520.5, got.Value)
	assert.Equal(t, 12.0, got.Consumption)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.True(t, ts.Equal(got.UpdatedAt))
	assert.False(t, got.Synced)
}

func TestToLocal_BadTimeFails(t *testing.T) {
	_, err := schema.Packages.ToLocal(schema.Row{"id": "p1", "received_at": "yesterday"})
	assert.Error(t, err)
}

func TestLogs_MapUserToUserName(t *testing.T) {
	row, err := schema.Logs.ToRemote(model.AppLog{Meta: model.Meta{ID: "l1"}, User: "Portaria 1"})
	require.NoError(t, err)
	assert.Equal(t, "Portaria 1", row["user_name"])
	assert.False(t, schema.Logs.HasColumn(schema.UpdatedColumn))
}

func TestSettings_RoundTrip(t *testing.T) {
	in := model.DefaultSettings()
	in.UpdatedAt = ts

	row, err := schema.Settings.ToRemote(in)
	require.NoError(t, err)
	assert.NotContains(t, row, "id")
	assert.NotContains(t, row, "synced")
	assert.Equal(t, "Portaria PX", row["company_name"])

	// Simulate the wire: sector_contacts arrives as generic JSON.
	data, err := json.Marshal(row)
	require.NoError(t, err)
	var wire schema.Row
	require.NoError(t, json.Unmarshal(data, &wire))

	out, err := schema.Settings.ToLocal(wire)
	require.NoError(t, err)
	assert.Equal(t, in.SectorContacts, out.SectorContacts)
	assert.Equal(t, in.CompanyName, out.CompanyName)
	assert.True(t, ts.Equal(out.UpdatedAt))
}
