package logging

import "strings"

// FormatSubject builds the media/unit subject string used in console output.
func FormatSubject(mediaID, unit string) string {
	mediaID = strings.TrimSpace(mediaID)
	unit = strings.TrimSpace(unit)
	switch {
	case mediaID != "" && unit != "":
		return mediaID + " · " + unit
	case mediaID != "":
		return mediaID
	default:
		return unit
	}
}
