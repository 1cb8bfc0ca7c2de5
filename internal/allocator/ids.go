package allocator

import "strconv"

// formatExecutorId renders the monotonic executor id counter the way
// the driver expects to see it: a plain decimal string.
func formatExecutorId(counter int) string {
	return strconv.Itoa(counter)
}
