package capture

import (
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"goveiss/internal/veiss"
)

type sampleRow struct {
	TimestampMs float64 `parquet:"name=timestamp_ms, type=DOUBLE"`
	DistanceMm  float64 `parquet:"name=distance_mm, type=DOUBLE"`
	Rep         int32   `parquet:"name=rep, type=INT32"`
	Phase       string  `parquet:"name=phase, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

const (
	PHASE_REST       = "rest"
	PHASE_CONCENTRIC = "concentric"
	PHASE_ECCENTRIC  = "eccentric"
)

// phases labels every sample with the rep it belongs to and the phase of
// that rep. Samples outside of any rep are labelled rest with rep 0.
func phases(timestamps []float64, reps []veiss.ValidatedRep) ([]int32, []string) {
	rep := make([]int32, len(timestamps))
	phase := make([]string, len(timestamps))
	for i, t := range timestamps {
		phase[i] = PHASE_REST
		for _, r := range reps {
			if t < r.ConcentricStart || t > r.RepEnd {
				continue
			}
			rep[i] = int32(r.RepNum)
			if t < r.EccentricStart {
				phase[i] = PHASE_CONCENTRIC
			} else {
				phase[i] = PHASE_ECCENTRIC
			}
			break
		}
	}
	return rep, phase
}

// MarshalParquet exports the processed signal of a set, one row per sample.
func MarshalParquet(sig *veiss.Signal, reps []veiss.ValidatedRep) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(sampleRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rep, phase := phases(sig.Timestamps, reps)
	n := min(len(sig.Samples), len(sig.Timestamps))
	for i := 0; i < n; i++ {
		row := sampleRow{
			TimestampMs: sig.Timestamps[i],
			DistanceMm:  sig.Samples[i],
			Rep:         rep[i],
			Phase:       phase[i],
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
