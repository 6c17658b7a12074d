// Package variant defines data structures for HLS variant streams in master playlists.
package variant

// Variant represents a single variant stream in an HLS master playlist.
// Each variant typically represents a different quality level (bitrate/resolution).
type Variant struct {
	// URI is the location of the variant's media playlist, possibly relative
	URI string

	// Bandwidth is the peak segment bitrate in bits per second
	Bandwidth int

	// AverageBandwidth is the AVERAGE-BANDWIDTH attribute, 0 if absent
	AverageBandwidth int

	// Resolution is the video resolution (e.g., "1920x1080", "1280x720")
	// Empty string if not specified in master playlist
	Resolution string

	// Codecs is the codec string (e.g., "avc1.4d401f,mp4a.40.2")
	// Empty string if not specified in master playlist
	Codecs string

	// FrameRate is the FRAME-RATE attribute, 0 if absent
	FrameRate float64
}
