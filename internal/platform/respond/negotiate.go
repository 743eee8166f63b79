package respond

import (
	"net/http"
	"strconv"
	"strings"
)

type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

// parseAccept splits an Accept header into media ranges. Empty entries are
// skipped, a bare type becomes type/*, and an unparsable or out-of-range q
// is treated as 1.0.
func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		mr := mediaRange{q: 1.0}

		media := strings.ToLower(strings.TrimSpace(params[0]))
		if typ, sub, ok := strings.Cut(media, "/"); ok {
			mr.typ, mr.subtype = strings.TrimSpace(typ), strings.TrimSpace(sub)
		} else {
			mr.typ, mr.subtype = media, "*"
		}

		for _, p := range params[1:] {
			key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), "q") {
				continue
			}
			q, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil || q < 0 || q > 1 {
				q = 1.0
			}
			mr.q = q
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// specificity ranks how precisely r names format ("json" or "cbor"):
// problem+format 4, format 3, *+format 2, application/* 1, */* 0.
// -1 means r does not cover the format at all.
func (r mediaRange) specificity(format string) int {
	switch {
	case r.typ == "*" && r.subtype == "*":
		return 0
	case r.typ != "application":
		return -1
	case r.subtype == "problem+"+format:
		return 4
	case r.subtype == format:
		return 3
	case r.subtype == "*+"+format:
		return 2
	case r.subtype == "*":
		return 1
	}
	return -1
}

type preference struct {
	q           float64
	specificity int
	matched     bool
}

func (p preference) acceptable() bool {
	return p.matched && p.q > 0
}

// preferenceFor returns the q-value of the most specific range covering format.
func preferenceFor(ranges []mediaRange, format string) preference {
	best := preference{specificity: -1}
	for _, r := range ranges {
		s := r.specificity(format)
		if s < 0 || s < best.specificity {
			continue
		}
		if s > best.specificity || r.q > best.q {
			best = preference{q: r.q, specificity: s, matched: true}
		}
	}
	return best
}

// selectFormat reports whether a problem response should be CBOR. JSON wins
// unless CBOR is acceptable and strictly preferred, by q-value first and
// then by how specifically it was requested.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	cborPref := preferenceFor(ranges, "cbor")
	if !cborPref.acceptable() {
		return false
	}
	jsonPref := preferenceFor(ranges, "json")
	if !jsonPref.acceptable() {
		return true
	}
	if cborPref.q != jsonPref.q {
		return cborPref.q > jsonPref.q
	}
	return cborPref.specificity > jsonPref.specificity
}

// ensureVary appends values to the Vary header, skipping any already listed.
func ensureVary(h http.Header, values ...string) {
	seen := make(map[string]struct{})
	for _, v := range h.Values("Vary") {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				seen[strings.ToLower(part)] = struct{}{}
			}
		}
	}
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		h.Add("Vary", v)
	}
}
