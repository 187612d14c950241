package maintenance

import (
	"strconv"
	"strings"
)

// compareVersions compares two dotted version strings numerically,
// segment by segment ("2.9.1" < "2.27.0"). Missing segments count as
// zero, so "2.9" equals "2.9.0". Non-numeric characters trailing a
// segment are ignored ("1.4rc1" compares as 1.4).
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av = numericPrefix(as[i])
		}
		if i < len(bs) {
			bv = numericPrefix(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func numericPrefix(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
