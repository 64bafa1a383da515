package models

// UploadGuidelines are shown to the user before a video is picked.
var UploadGuidelines = []string{
	"Make sure nobody is near the shooter in the video",
	"Video should start from the catch and end at the landing",
	"Closer videos with good lighting are preferred",
}
