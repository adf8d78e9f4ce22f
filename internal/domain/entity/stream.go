package entity

import "time"

type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeOther MediaType = "other"
)

// Rational is a numerator/denominator pair as carried by container metadata.
type Rational struct {
	Num int64
	Den int64
}

func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// StreamDescriptor describes one stream of an opened container.
type StreamDescriptor struct {
	Index        int
	MediaType    MediaType
	Codec        string
	Width        int
	Height       int
	PixelFormat  string
	AvgFrameRate Rational
	Duration     time.Duration
}

func (s StreamDescriptor) IsVideo() bool {
	return s.MediaType == MediaTypeVideo
}
