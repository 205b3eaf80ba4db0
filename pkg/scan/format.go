package scan

import "fmt"

var sizeUnits = [...]string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with base-1024 scaling and two
// decimal places. Zero is "0 B" exactly and sub-KB sizes stay integral:
// 1536 bytes formats as "1.50 KB".
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.2f %s", value, sizeUnits[unit])
}
