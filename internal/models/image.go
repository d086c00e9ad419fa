package models

// KindImageMapping maps "<category>-<name>" to an image file on disk.
const KindImageMapping = "ImageMapping"

type ImageMapping struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Location string `json:"location"`
}
