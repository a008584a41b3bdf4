package utility

import (
	"github.com/google/uuid"
	"strconv"
)

// ToInt converts a string to an integer, returning 0 for anything that is not a number
func ToInt(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func NewUUID() string {
	return uuid.New().String()
}
