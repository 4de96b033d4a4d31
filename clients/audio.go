package clients

import (
	"mime"
	"path/filepath"
	"strings"
)

const octetStream = "application/octet-stream"

// Common recording formats. The system mime table often lacks audio entries.
var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
}

// MIMEForPath guesses a recording's content type from its extension.
func MIMEForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return octetStream
}

// ExtForMIME is the inverse of MIMEForPath, "" when unknown.
func ExtForMIME(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	}
	return ""
}

// FileName is base plus the extension matching the audio's content type.
func (a Audio) FileName(base string) string {
	return base + ExtForMIME(a.MIMEType)
}
