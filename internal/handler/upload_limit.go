package handler

import "strconv"

// formatUploadLimit renders a byte limit for messages, in whole MB when the
// limit is at least one MB and in KB otherwise.
func formatUploadLimit(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case bytes <= 0:
		return "0KB"
	case bytes >= mb:
		return strconv.FormatInt(bytes/mb, 10) + "MB"
	default:
		return strconv.FormatInt((bytes+kb-1)/kb, 10) + "KB"
	}
}
