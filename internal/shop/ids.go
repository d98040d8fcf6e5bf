package shop

import "strconv"

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// ParseID parses a positive identifier, reporting field on failure.
func ParseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, Validation(field, "%s must be a positive integer", field)
	}
	return id, nil
}
