package capture

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goveiss/internal/formats/tof"
	"goveiss/internal/veiss"
)

const sample = `session_id,timestamp_ms,z1,z0,z2,z4
1,1066,511,501,521,999
1,1000,510,500,520,999
1,1033,x,502,522,999
2,5000,600,610,620,999
1,,1,2,3,999
1,1066,0,0,0,999
`

func TestReadCSV(t *testing.T) {
	captures, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, captures, 2)

	c := captures[0]
	assert.Equal(t, "1", c.SessionId)
	assert.Equal(t, 2, c.Skipped)
	require.Equal(t, 3, c.Buffer.Len())
	assert.Equal(t, []float64{1000, 1033, 1066}, c.Buffer.Timestamps())

	// zones are ordered by name, z4 is dropped because z3 is missing
	assert.Equal(t, []uint16{500, 510, 520}, c.Buffer.Frames[0].Zones)
	assert.Equal(t, []uint16{502}, c.Buffer.Frames[1].Zones)
	assert.Equal(t, []uint16{501, 511, 521}, c.Buffer.Frames[2].Zones)

	assert.Equal(t, "2", captures[1].SessionId)
	assert.Equal(t, []uint16{610, 600, 620}, captures[1].Buffer.Frames[0].Zones)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("session_id,z0\n1,500\n"))
	assert.ErrorIs(t, err, ErrNoTimestampColumn)

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	captures, err := ReadCSV(strings.NewReader("timestamp_ms,z0\n"))
	require.NoError(t, err)
	assert.Empty(t, captures)
}

func TestZoneClamp(t *testing.T) {
	d, ok := zone(" 70000 ")
	assert.True(t, ok)
	assert.Equal(t, uint16(65535), d)
	d, ok = zone("-3")
	assert.True(t, ok)
	assert.Zero(t, d)
	_, ok = zone("NaN")
	assert.False(t, ok)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	buf := veiss.NewSetBuffer()
	require.NoError(t, buf.Append(tof.Frame{Timestamp: 10, Zones: []uint16{400, 410}}))
	require.NoError(t, buf.Append(tof.Frame{Timestamp: 43, FrameId: 1, Zones: []uint16{405}}))

	var out bytes.Buffer
	require.NoError(t, WriteCSV(&out, "7", buf))
	assert.Equal(t, "session_id,timestamp_ms,z0,z1\n7,10,400,410\n7,43,405,\n", out.String())

	captures, err := ReadCSV(&out)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, buf.Frames, captures[0].Buffer.Frames)
}

func TestPhases(t *testing.T) {
	reps := []veiss.ValidatedRep{{RepNum: 1, ConcentricStart: 100, EccentricStart: 200, RepEnd: 300}}
	rep, phase := phases([]float64{50, 100, 150, 200, 300, 350}, reps)
	assert.Equal(t, []int32{0, 1, 1, 1, 1, 0}, rep)
	assert.Equal(t, []string{
		PHASE_REST, PHASE_CONCENTRIC, PHASE_CONCENTRIC, PHASE_ECCENTRIC, PHASE_ECCENTRIC, PHASE_REST,
	}, phase)
}

func TestMarshalParquet(t *testing.T) {
	sig := &veiss.Signal{
		Samples:    []float64{500, 520, 540, 520, 500},
		Timestamps: []float64{0, 33, 66, 99, 132},
	}
	data, err := MarshalParquet(sig, []veiss.ValidatedRep{{RepNum: 1, ConcentricStart: 0, EccentricStart: 66, RepEnd: 132}})
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("PAR1"), data[:4])
	assert.Equal(t, []byte("PAR1"), data[len(data)-4:])
}
