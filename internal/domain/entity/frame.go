package entity

// RescaledFrame is a packed RGB24 raster at the run's target resolution.
// The producing pipeline iteration owns it; consumers must not retain it.
type RescaledFrame struct {
	Width  int
	Height int
	Pix    []byte
}

const RGB24Channels = 3

// ExpectedLen is the payload size a well-formed frame of these dimensions carries.
func (f *RescaledFrame) ExpectedLen() int {
	return f.Width * f.Height * RGB24Channels
}

// Chunk groups a fixed number of consecutive frames.
type Chunk struct {
	Index      int
	FirstFrame uint64
	LastFrame  uint64
	FrameCount int64
	Artifacts  []string
}
