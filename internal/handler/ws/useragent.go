package ws

import "strings"

// bucketOS coarsens a User-Agent header into the small set of tags the
// metrics recorder uses, mirroring the os tag emitted alongside cadence
// counters in emit_metrics_for_send. Unknown agents bucket to "other"
// rather than leaking full UA strings into metric cardinality.
func bucketOS(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "ios"
	case strings.Contains(ua, "windows"):
		return "windows"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"):
		return "macos"
	case strings.Contains(ua, "linux"):
		return "linux"
	default:
		return "other"
	}
}
