package audio

import (
	"encoding/binary"
	"math"
)

// SilenceDB is the level reported for digital silence
const SilenceDB = -160.0

// LevelDB returns the RMS level of little-endian signed 16-bit samples in
// dBFS, clamped to [SilenceDB, 0].
func LevelDB(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return SilenceDB
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return SilenceDB
	}

	db := 20 * math.Log10(rms)
	if db < SilenceDB {
		return SilenceDB
	}
	if db > 0 {
		return 0
	}
	return db
}
