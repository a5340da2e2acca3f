package uploader

import (
	"strconv"
	"time"
)

// TimezoneOffset resolves an IANA timezone name to its whole-hour UTC
// offset at the given instant, as the string the chunk endpoint expects
// in tz_off. An unresolvable name is passed through unchanged; the
// server falls back to its own local offset for values it cannot parse.
func TimezoneOffset(name string, at time.Time) string {
	if name == "" {
		_, off := at.Zone()
		return strconv.Itoa(off / 3600)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return name
	}
	_, off := at.In(loc).Zone()
	return strconv.Itoa(off / 3600)
}
