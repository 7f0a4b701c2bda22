package report

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/trafficwatch/internal/models"
)

const twoRowTable = `| Violation / Hazard | Subject | Timestamp | Description |
|---|---|---|---|
| Dangerous / Rash Driving | White Toyota Innova | 00:14 - 00:15 | The vehicle makes an abrupt and unsafe lane change. |
| Hit-and-Run | White Toyota Innova | 00:17 | The vehicle drives away from the scene. |`

func TestParseWellFormedTable(t *testing.T) {
	got := NewParser(2, nil).Parse(twoRowTable)

	require.Len(t, got, 2)
	assert.Equal(t, models.Violation{
		Name:        "Dangerous / Rash Driving",
		Subject:     "White Toyota Innova",
		StartTime:   14,
		EndTime:     15,
		Description: "The vehicle makes an abrupt and unsafe lane change.",
	}, got[0])
	assert.Equal(t, "Hit-and-Run", got[1].Name)
	assert.Equal(t, 17, got[1].StartTime)
	assert.Equal(t, 19, got[1].EndTime)
}

func TestParseNoIssues(t *testing.T) {
	p := NewParser(2, nil)

	assert.Empty(t, p.Parse(""))
	assert.Empty(t, p.Parse("   \n "))
	assert.Empty(t, p.Parse("No traffic violations, criminal activities, or road safety hazards were observed in the video."))
	// the phrase short-circuits even when a table is present
	assert.Empty(t, p.Parse(twoRowTable+"\nNo traffic violations were seen after 00:20."))
}

func TestParseSkipsIrregularRows(t *testing.T) {
	text := `| Violation / Hazard | Subject | Timestamp | Description |
| --- | --- | --- | --- |
| Overspeeding | Red hatchback | 00:03 |
| Riding Without a Helmet | Rider on black scooter | 00:04 - 00:09 | Rider has no helmet. | extra |
| Stray Animals on Road | Stray dog | 00:10 - 00:12 | A dog crosses the carriageway. |
| Wrong-Way Driving |  | 00:13 | Empty subject cell. |`

	got := NewParser(2, nil).Parse(text)

	require.Len(t, got, 1)
	assert.Equal(t, "Stray Animals on Road", got[0].Name)
}

func TestParseSkipsMalformedTimestamps(t *testing.T) {
	text := `| Violation / Hazard | Subject | Timestamp | Description |
|---|---|---|---|
| Overspeeding | Red hatchback | abc | Too fast. |
| Illegal U-Turn / Crossing | Blue SUV | 1:2:3 | Turns across the median. |
| Obstructive Parking | White van | 00:40 - 00:55 | Parked on the crossing. |`

	got := NewParser(2, nil).Parse(text)

	require.Len(t, got, 1)
	assert.Equal(t, "Obstructive Parking", got[0].Name)
	assert.Equal(t, 40, got[0].StartTime)
	assert.Equal(t, 55, got[0].EndTime)
}

func TestParseKeepsTableOrder(t *testing.T) {
	text := `| Theft / Snatching | Pedestrian in blue shirt | 00:30 | Bag taken. |
| Vandalism | Man in grey hoodie | 00:05 - 00:07 | Kicks a mirror. |
| Road Rage / Assault | Driver of white SUV | 00:12 - 00:20 | Strikes a rider. |`

	got := NewParser(2, nil).Parse(text)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"Theft / Snatching", "Vandalism", "Road Rage / Assault"},
		[]string{got[0].Name, got[1].Name, got[2].Name})
}

func TestParseHeaderCaseInsensitive(t *testing.T) {
	text := `| VIOLATION | SUBJECT | TIMESTAMP | DESCRIPTION |
| Overspeeding | Red hatchback | 00:03 | Too fast. |`

	got := NewParser(2, nil).Parse(text)
	require.Len(t, got, 1)
	assert.Equal(t, "Overspeeding", got[0].Name)
}

func TestParseShortRuleRows(t *testing.T) {
	text := `| Violation / Hazard | Subject | Timestamp | Description |
| :-- | :-: | --: | - |
| Disobeying Traffic Signal | Yellow auto-rickshaw | 00:21 - 00:24 | Crosses on red. |`

	var logs bytes.Buffer
	p := NewParser(2, slog.New(slog.NewTextHandler(&logs, nil)))

	got := p.Parse(text)

	require.Len(t, got, 1)
	assert.Equal(t, "Disobeying Traffic Signal", got[0].Name)
	assert.Empty(t, logs.String())
}

func TestIsRuleRow(t *testing.T) {
	assert.True(t, isRuleRow([]string{"---", ":--", "--:", ":-:"}))
	assert.False(t, isRuleRow([]string{"---", "::", "---", "---"}))
	assert.False(t, isRuleRow([]string{"Hit-and-Run", "-", "-", "-"}))
}
