package enums

import "strings"

// transcribableTypes lists the audio/video content types the pipeline can
// transcribe. Other allowed types are stored without processing.
var transcribableTypes = []string{
	"audio/mpeg", "audio/mp3", "audio/wav", "audio/m4a", "audio/flac", "audio/aac",
	"video/mp4", "video/mov", "video/avi", "video/webm", "video/mkv", "video/wmv",
	"video/mpeg", "video/mpg",
}

var allowedUploadTypes = append(append([]string{}, transcribableTypes...),
	"image/jpeg", "image/png", "image/gif", "image/webp",
	"application/pdf", "text/plain", "application/json",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
)

// IsTranscribable reports whether uploads of this content type should be
// handed to the processing pipeline.
func IsTranscribable(contentType string) bool {
	for _, candidate := range transcribableTypes {
		if strings.EqualFold(candidate, contentType) {
			return true
		}
	}
	return false
}

// IsAllowedUpload reports whether the content type may be stored at all.
func IsAllowedUpload(contentType string) bool {
	for _, candidate := range allowedUploadTypes {
		if strings.EqualFold(candidate, contentType) {
			return true
		}
	}
	return false
}
