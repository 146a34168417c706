package track

// SensorCount is the number of capacitive pads in the device layout.
const SensorCount = 16

// sensorPitch is the lattice spacing between adjacent pads, metres.
const sensorPitch = 19.1e-3

// Vec3 is a point in the device frame, metres. The sensor plane is z=0.
type Vec3 struct {
	X, Y, Z float64
}

// sensorLayout is the fixed pad geometry: a 4x4 lattice at ±0.5·d and ±1.5·d
// with the pad ordering the firmware streams channels in. Index i here is
// channel i on the wire.
var sensorLayout = [SensorCount]Vec3{
	{-1.5 * sensorPitch, -1.5 * sensorPitch, 0},
	{0.5 * sensorPitch, -1.5 * sensorPitch, 0},
	{1.5 * sensorPitch, -1.5 * sensorPitch, 0},
	{0.5 * sensorPitch, -0.5 * sensorPitch, 0},
	{1.5 * sensorPitch, -0.5 * sensorPitch, 0},
	{0.5 * sensorPitch, 0.5 * sensorPitch, 0},
	{1.5 * sensorPitch, 0.5 * sensorPitch, 0},
	{0.5 * sensorPitch, 1.5 * sensorPitch, 0},
	{1.5 * sensorPitch, 1.5 * sensorPitch, 0},
	{-0.5 * sensorPitch, 1.5 * sensorPitch, 0},
	{-1.5 * sensorPitch, 1.5 * sensorPitch, 0},
	{-0.5 * sensorPitch, 0.5 * sensorPitch, 0},
	{-1.5 * sensorPitch, 0.5 * sensorPitch, 0},
	{-0.5 * sensorPitch, -0.5 * sensorPitch, 0},
	{-1.5 * sensorPitch, -0.5 * sensorPitch, 0},
	{-0.5 * sensorPitch, -1.5 * sensorPitch, 0},
}

// SensorPositions returns a copy of the pad layout for hosts that render it.
func SensorPositions() [SensorCount]Vec3 {
	return sensorLayout
}

// sensorBounds returns the axis-aligned bounding box of the pad layout in
// the sensor plane.
func sensorBounds() (minX, maxX, minY, maxY float64) {
	minX, maxX = sensorLayout[0].X, sensorLayout[0].X
	minY, maxY = sensorLayout[0].Y, sensorLayout[0].Y
	for _, s := range sensorLayout[1:] {
		if s.X < minX {
			minX = s.X
		}
		if s.X > maxX {
			maxX = s.X
		}
		if s.Y < minY {
			minY = s.Y
		}
		if s.Y > maxY {
			maxY = s.Y
		}
	}
	return minX, maxX, minY, maxY
}
