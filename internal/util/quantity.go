package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseMemory converts a memory string (e.g., "4G", "512M", "4096") to MiB.
// A bare number is taken as MiB, which is the unit actor run options use.
// If the string is empty, it returns 0.
func ParseMemory(memory string) (int, error) {
	memory = strings.TrimSpace(memory)
	if memory == "" {
		return 0, nil
	}

	i := strings.IndexFunc(memory, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	number, unit := memory, ""
	if i >= 0 {
		number, unit = memory[:i], memory[i:]
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory value: %s", memory)
	}

	unit = strings.ToUpper(strings.TrimSpace(unit))
	switch unit {
	case "B":
		return int(value / (1024 * 1024)), nil
	case "K", "KB", "KI", "KIB":
		return int(value / 1024), nil
	case "", "M", "MB", "MI", "MIB":
		return int(value), nil
	case "G", "GB", "GI", "GIB":
		return int(value * 1024), nil
	case "T", "TB", "TI", "TIB":
		return int(value * 1024 * 1024), nil
	default:
		return 0, fmt.Errorf("unknown memory unit: %s", unit)
	}
}

// ValidateActorMemory checks that mb is a power of two between 128 MiB and 32 GiB,
// the range the platform accepts for default run options.
func ValidateActorMemory(mb int) error {
	if mb < 128 || mb > 32768 {
		return fmt.Errorf("memory %d MiB out of range [128, 32768]", mb)
	}
	if mb&(mb-1) != 0 {
		return fmt.Errorf("memory %d MiB is not a power of two", mb)
	}
	return nil
}

// Seconds converts a float number of seconds to a duration. Non-positive values yield 0.
func Seconds(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
