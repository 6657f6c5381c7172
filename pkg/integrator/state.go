package integrator

import (
	"bytes"
	"encoding/binary"

	"github.com/df07/liar-gi/pkg/core"
)

// tuningConfigBlobSize is the fixed size of an encoded core.TuningConfig:
// nine 8-byte scalars (MaxNumberOfPhotons, GlobalMapSize, CausticsQuality,
// VolumetricQuality, NumFinalGatherRays, NumSecondaryGatherRays,
// RatioPrecomputedIrradiance, VolumetricGatherQuality, MaxRayGeneration),
// three 1-byte flags, and three 24-byte per-map-kind estimation triples.
// Kept explicit rather than derived so SetState's size check
// (ConsistencyError) is meaningful.
const tuningConfigBlobSize = 9*8 + 3*1 + 3*24

// encodeTuningConfig serializes the tuning surface into the opaque blob
// format GetState/SetState exchange (§6, §7).
func encodeTuningConfig(c core.TuningConfig) []byte {
	buf := new(bytes.Buffer)
	write := func(v interface{}) { binary.Write(buf, binary.LittleEndian, v) }

	write(int64(c.MaxNumberOfPhotons))
	write(int64(c.GlobalMapSize))
	write(c.CausticsQuality)
	write(c.VolumetricQuality)
	write(int64(c.NumFinalGatherRays))
	write(int64(c.NumSecondaryGatherRays))
	write(c.RatioPrecomputedIrradiance)
	write(c.VolumetricGatherQuality)
	write(boolByte(c.IsVisualizingPhotonMap))
	write(boolByte(c.IsRayTracingDirect))
	write(boolByte(c.IsScatteringDirect))
	for _, est := range c.Estimation {
		write(est.Radius)
		write(est.Tolerance)
		write(int64(est.Size))
	}
	write(int64(c.MaxRayGeneration))

	return buf.Bytes()
}

// decodeTuningConfig parses a blob produced by encodeTuningConfig,
// returning a *core.ConsistencyError if its length doesn't match.
func decodeTuningConfig(blob []byte) (core.TuningConfig, error) {
	var c core.TuningConfig
	if len(blob) != tuningConfigBlobSize {
		return c, &core.ConsistencyError{Expected: tuningConfigBlobSize, Got: len(blob)}
	}

	r := bytes.NewReader(blob)
	read := func(v interface{}) { binary.Read(r, binary.LittleEndian, v) }

	var maxPhotons, globalMapSize, finalGather, secondaryGather, maxGen int64
	var visPhoton, rtDirect, scatterDirect byte

	read(&maxPhotons)
	read(&globalMapSize)
	read(&c.CausticsQuality)
	read(&c.VolumetricQuality)
	read(&finalGather)
	read(&secondaryGather)
	read(&c.RatioPrecomputedIrradiance)
	read(&c.VolumetricGatherQuality)
	read(&visPhoton)
	read(&rtDirect)
	read(&scatterDirect)
	for i := range c.Estimation {
		read(&c.Estimation[i].Radius)
		read(&c.Estimation[i].Tolerance)
		var size int64
		read(&size)
		c.Estimation[i].Size = int(size)
	}
	read(&maxGen)

	c.MaxNumberOfPhotons = int(maxPhotons)
	c.GlobalMapSize = int(globalMapSize)
	c.NumFinalGatherRays = int(finalGather)
	c.NumSecondaryGatherRays = int(secondaryGather)
	c.IsVisualizingPhotonMap = visPhoton != 0
	c.IsRayTracingDirect = rtDirect != 0
	c.IsScatteringDirect = scatterDirect != 0
	c.MaxRayGeneration = int(maxGen)

	return c, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
