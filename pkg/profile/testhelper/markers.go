package testhelper

import (
	"fmt"

	"github.com/grafana/profdiff/pkg/profile"
)

// TestMarker describes a marker to add to a thread. A nil End makes the
// marker an instant.
type TestMarker struct {
	Name  string
	Start float64
	End   *float64
	Data  profile.MarkerPayload
}

func Instant(name string, start float64) TestMarker {
	return TestMarker{Name: name, Start: start}
}

func Interval(name string, start, end float64) TestMarker {
	return TestMarker{Name: name, Start: start, End: &end}
}

func (m TestMarker) WithData(data profile.MarkerPayload) TestMarker {
	m.Data = data
	return m
}

// AddMarkers appends markers to the thread, interning their names into the
// thread string table.
func AddMarkers(t *profile.Thread, markers ...TestMarker) {
	for _, m := range markers {
		phase := profile.MarkerPhaseInstant
		if m.End != nil {
			phase = profile.MarkerPhaseInterval
		}
		t.Markers.AppendRow(profile.MarkerRow{
			Name:      t.StringTable.IndexForString(m.Name),
			StartTime: m.Start,
			EndTime:   m.End,
			Phase:     phase,
			Category:  0,
			Data:      m.Data,
		})
	}
}

// ProfileWithMarkers builds a profile with one thread per marker list. The
// threads have no samples.
func ProfileWithMarkers(markersPerThread ...[]TestMarker) *profile.Profile {
	b := NewProfileBuilder()
	for i, markers := range markersPerThread {
		t := profile.NewThread(fmt.Sprintf("Thread %d", i))
		t.PID = fmt.Sprint(1000 + i)
		t.TID = fmt.Sprint(2000 + i)
		AddMarkers(t, markers...)
		b.Threads = append(b.Threads, t)
	}
	return b.Profile
}

// TestMarkerSchema contains the schemas of payloads used in tests.
var TestMarkerSchema = []profile.MarkerSchema{
	{
		Name: "Log",
		Fields: []profile.MarkerSchemaField{
			{Key: "module", Label: "Module", Format: "string"},
			{Key: "name", Label: "Name", Format: "string"},
		},
	},
	{
		Name: "tracing",
		Fields: []profile.MarkerSchemaField{
			{Key: "category", Label: "Type", Format: "string"},
		},
	},
	{
		Name: "Text",
		Fields: []profile.MarkerSchemaField{
			{Key: "name", Label: "Details", Format: profile.MarkerFormatUniqueString},
		},
	},
}
