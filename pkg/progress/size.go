package progress

import "fmt"

var decimalAbbrs = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// HumanSize formats a byte count with three significant digits and a decimal unit.
func HumanSize(size float64) string {
	i := 0
	for size >= 1000.0 && i < len(decimalAbbrs)-1 {
		size = size / 1000.0
		i++
	}
	return fmt.Sprintf("%.*g%s", 3, size, decimalAbbrs[i])
}
