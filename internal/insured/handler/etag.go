package handler

import (
	"strconv"
	"strings"

	dErrors "insured/pkg/domain-errors"
)

// formatETag renders a record version as a strong entity tag.
func formatETag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseIfMatch returns the version named by an If-Match header. An absent
// header or "*" yields 0, which the service treats as unconditional.
func parseIfMatch(header string) (int64, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return 0, nil
	}
	tag := strings.TrimPrefix(header, "W/")
	tag = strings.Trim(tag, `"`)
	version, err := strconv.ParseInt(tag, 10, 64)
	if err != nil || version < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "If-Match must carry an ETag returned by this service")
	}
	return version, nil
}
