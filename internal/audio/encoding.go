package audio

import (
	"log/slog"
)

// Encoding is a container/codec pair a device can produce.
type Encoding struct {
	Name      string `json:"name" yaml:"name"`
	MimeType  string `json:"mime_type" yaml:"mime_type"`
	Format    string `json:"format" yaml:"format"`
	Codec     string `json:"codec,omitempty" yaml:"codec,omitempty"`
	Extension string `json:"extension" yaml:"extension"`
}

var (
	EncodingOpusWebM = Encoding{Name: "opus-webm", MimeType: "audio/webm;codecs=opus", Format: "webm", Codec: "libopus", Extension: "webm"}
	EncodingWebM     = Encoding{Name: "webm", MimeType: "audio/webm", Format: "webm", Codec: "libvorbis", Extension: "webm"}
	EncodingWAV      = Encoding{Name: "wav", MimeType: "audio/wav", Format: "wav", Codec: "pcm_s16le", Extension: "wav"}
	// EncodingDefault leaves the codec to the muxer.
	EncodingDefault = Encoding{Name: "default", MimeType: "application/octet-stream", Format: "matroska", Extension: "mka"}
)

// Preference is the order encodings are tried in when nothing is configured.
var Preference = []Encoding{EncodingOpusWebM, EncodingWebM, EncodingWAV}

// LookupEncoding finds a known encoding by name.
func LookupEncoding(name string) (Encoding, bool) {
	for _, enc := range []Encoding{EncodingOpusWebM, EncodingWebM, EncodingWAV, EncodingDefault} {
		if enc.Name == name {
			return enc, true
		}
	}
	return Encoding{}, false
}

// PreferenceFromNames maps configured names to encodings, skipping unknown ones.
func PreferenceFromNames(names []string) []Encoding {
	if len(names) == 0 {
		return Preference
	}

	var result []Encoding
	for _, name := range names {
		enc, ok := LookupEncoding(name)
		if !ok {
			slog.Warn("Ignoring unknown encoding", "name", name)
			continue
		}
		result = append(result, enc)
	}
	return result
}

// Prober reports whether a device can produce an encoding.
type Prober interface {
	Supports(enc Encoding) bool
}

// Negotiate picks the first supported encoding in order, falling back to
// EncodingDefault.
func Negotiate(p Prober, order []Encoding) Encoding {
	for _, enc := range order {
		if enc.Name == EncodingDefault.Name {
			break
		}
		if p.Supports(enc) {
			slog.Debug("Negotiated encoding", "encoding", enc.Name)
			return enc
		}
		slog.Debug("Encoding not supported", "encoding", enc.Name)
	}
	return EncodingDefault
}
