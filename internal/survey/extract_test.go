package survey

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExtract(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func TestReadWaveParsesHarmonizedColumns(t *testing.T) {
	path := writeExtract(t, "wave.csv",
		"ResponseID,Finished,Age,region_code,RUCA,education_level,workdisc,PHQ9_1,PHQ9_2",
		"p-001,1,34,south,2,5,0,1,2",
		"p-002,1,51,west,8,3,1,0,0",
	)

	responses, report, err := ReadWave(path, WaveFirst, DefaultCodebook())
	require.NoError(t, err)
	require.Len(t, responses, 2)

	r := responses[0]
	assert.Equal(t, "p-001", r.ParticipantID)
	assert.Equal(t, WaveFirst, r.Year)
	assert.Equal(t, 1.0, r.Completed)
	assert.Equal(t, 34.0, r.Age)
	assert.Equal(t, "south", r.Region)
	assert.Equal(t, 2.0, r.Urbanicity)
	assert.Equal(t, 5.0, r.Education)
	assert.Equal(t, 0.0, r.WorkDiscrimination)
	assert.Equal(t, 1.0, r.PHQ[0])
	assert.Equal(t, 2.0, r.PHQ[1])

	// Items absent from the file stay missing.
	assert.True(t, math.IsNaN(r.PHQ[2]))
	assert.True(t, math.IsNaN(r.Occupation[0]))

	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 2, report.Kept)
	assert.Contains(t, report.MissingFields, "phq_3")
}

func TestReadWaveMissingSentinels(t *testing.T) {
	path := writeExtract(t, "wave.csv",
		"participant_id,age,phq_1,phq_2,phq_3",
		"a,NA,,nan,2",
	)

	responses, report, err := ReadWave(path, WaveSecond, DefaultCodebook())
	require.NoError(t, err)
	require.Len(t, responses, 1)

	r := responses[0]
	assert.True(t, math.IsNaN(r.Age))
	assert.True(t, math.IsNaN(r.PHQ[0]))
	assert.True(t, math.IsNaN(r.PHQ[1]))
	assert.Equal(t, 2.0, r.PHQ[2])
	assert.Equal(t, 0, report.ParseFailures)
}

func TestReadWaveCountsParseFailures(t *testing.T) {
	path := writeExtract(t, "wave.csv",
		"participant_id,age",
		"a,not-a-number",
	)

	responses, report, err := ReadWave(path, WaveFirst, DefaultCodebook())
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.True(t, math.IsNaN(responses[0].Age))
	assert.Equal(t, 1, report.ParseFailures)
}

func TestReadWaveDuplicatesKeepFirst(t *testing.T) {
	path := writeExtract(t, "wave.csv",
		"participant_id,age",
		"a,30",
		"a,99",
		"b,40",
		",50",
	)

	responses, report, err := ReadWave(path, WaveFirst, DefaultCodebook())
	require.NoError(t, err)
	require.Len(t, responses, 2)

	assert.Equal(t, 30.0, responses[0].Age)
	assert.Equal(t, "b", responses[1].ParticipantID)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 1, report.DuplicateIDs)
	assert.Equal(t, 1, report.BlankIDs)
}

func TestReadWaveUnmappedColumnsReported(t *testing.T) {
	path := writeExtract(t, "wave.csv",
		"participant_id,age,favorite_color",
		"a,30,blue",
	)

	_, report, err := ReadWave(path, WaveFirst, DefaultCodebook())
	require.NoError(t, err)
	assert.Equal(t, []string{"favorite_color"}, report.UnmappedColumns)
}

func TestReadWaveRequiresParticipantID(t *testing.T) {
	path := writeExtract(t, "wave.csv",
		"age,phq_1",
		"30,1",
	)

	_, _, err := ReadWave(path, WaveFirst, DefaultCodebook())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "participant_id")
}

func TestReadBaseline(t *testing.T) {
	path := writeExtract(t, "baseline.csv",
		"pid,immigrant_status,lifetime_diagnosis",
		"a,1,3",
		"b,,1",
		"a,0,2",
	)

	records, report, err := ReadBaseline(path, DefaultCodebook())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "a", records[0].ParticipantID)
	assert.Equal(t, 1.0, records[0].Immigrant)
	assert.True(t, math.IsNaN(records[1].Immigrant))
	assert.Equal(t, 1, report.DuplicateIDs)
	assert.Contains(t, report.UnmappedColumns, "lifetime_diagnosis")
}

func TestReadWaveMissingFile(t *testing.T) {
	_, _, err := ReadWave(filepath.Join(t.TempDir(), "absent.csv"), WaveFirst, DefaultCodebook())
	require.Error(t, err)
}
