package capture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"goveiss/internal/formats/tof"
	"goveiss/internal/veiss"
)

var ErrNoTimestampColumn = errors.New("capture has no timestamp_ms column")

type Capture struct {
	SessionId string
	Buffer    *veiss.SetBuffer
	Skipped   int // rows without a numeric timestamp, or repeating one
}

type row struct {
	timestamp uint64
	zones     []uint16
}

type columns struct {
	session   int
	timestamp int
	zones     []int // column index of z0, z1, ...
}

func parseHeader(header []string) (columns, error) {
	cols := columns{session: -1, timestamp: -1}
	zoneIdx := map[int]int{}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case name == "session_id":
			cols.session = i
		case name == "timestamp_ms":
			cols.timestamp = i
		case strings.HasPrefix(name, "z"):
			if n, err := strconv.Atoi(name[1:]); err == nil && n >= 0 && n < tof.MAX_ZONES {
				zoneIdx[n] = i
			}
		}
	}
	if cols.timestamp < 0 {
		return cols, ErrNoTimestampColumn
	}
	for z := 0; ; z++ {
		i, ok := zoneIdx[z]
		if !ok {
			break
		}
		cols.zones = append(cols.zones, i)
	}
	return cols, nil
}

// zone parses a distance cell. Readings are rounded and clamped to the
// range of the sensor's unsigned 16 bit output.
func zone(cell string) (uint16, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return uint16(math.Max(0, math.Min(math.Round(v), math.MaxUint16))), true
}

// ReadCSV reads a capture with a header of session_id, timestamp_ms and zone
// columns z0..zN. It returns one capture per session id, in order of first
// appearance. Rows are sorted by timestamp. A row stops at its first zone
// cell that is not a number, so the zones after it count as missing.
func ReadCSV(r io.Reader) ([]Capture, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading capture header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var order []string
	rows := map[string][]row{}
	skipped := map[string]int{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading capture: %w", err)
		}

		id := ""
		if cols.session >= 0 && cols.session < len(record) {
			id = strings.TrimSpace(record[cols.session])
		}
		if _, ok := rows[id]; !ok {
			order = append(order, id)
			rows[id] = nil
		}

		if cols.timestamp >= len(record) {
			skipped[id]++
			continue
		}
		ts, err := strconv.ParseFloat(strings.TrimSpace(record[cols.timestamp]), 64)
		if err != nil || ts < 0 || math.IsNaN(ts) || math.IsInf(ts, 0) {
			skipped[id]++
			continue
		}

		rw := row{timestamp: uint64(math.Round(ts))}
		for _, c := range cols.zones {
			if c >= len(record) {
				break
			}
			d, ok := zone(record[c])
			if !ok {
				break
			}
			rw.zones = append(rw.zones, d)
		}
		rows[id] = append(rows[id], rw)
	}

	captures := make([]Capture, 0, len(order))
	for _, id := range order {
		c := Capture{SessionId: id, Buffer: veiss.NewSetBuffer(), Skipped: skipped[id]}
		rs := rows[id]
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].timestamp < rs[j].timestamp })
		for i, rw := range rs {
			if i > 0 && rw.timestamp == rs[i-1].timestamp {
				c.Skipped++
				continue
			}
			frame := tof.Frame{Timestamp: rw.timestamp, FrameId: uint16(c.Buffer.Len()), Zones: rw.zones}
			if err := c.Buffer.Append(frame); err != nil {
				c.Skipped++
			}
		}
		captures = append(captures, c)
	}
	return captures, nil
}

// WriteCSV writes a set buffer in the format read by ReadCSV.
func WriteCSV(w io.Writer, sessionId string, buf *veiss.SetBuffer) error {
	zones := 0
	for _, f := range buf.Frames {
		zones = max(zones, len(f.Zones))
	}
	cw := csv.NewWriter(w)
	header := []string{"session_id", "timestamp_ms"}
	for z := 0; z < zones; z++ {
		header = append(header, "z"+strconv.Itoa(z))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, f := range buf.Frames {
		record := []string{sessionId, strconv.FormatUint(f.Timestamp, 10)}
		for z := 0; z < zones; z++ {
			if z < len(f.Zones) {
				record = append(record, strconv.Itoa(int(f.Zones[z])))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
