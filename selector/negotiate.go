package selector

import (
	"strings"

	"github.com/munnerz/goautoneg"
)

// Negotiate picks the offered media type the Accept header prefers. Offers
// are ranked by the weight of their most specific matching range, then by
// that range's specificity, then by offer order. A blank header accepts the
// first offer.
func Negotiate(accept string, offers []string) (string, bool) {
	if len(offers) == 0 {
		return "", false
	}

	if strings.TrimSpace(accept) == "" {
		return offers[0], true
	}

	ranges := goautoneg.ParseAccept(strings.ToLower(accept))

	best, bestQ, bestSpecificity := -1, 0.0, -1

	for i, offer := range offers {
		typ, subtype, ok := splitMediaType(offer)
		if !ok {
			continue
		}

		q, specificity := quality(ranges, typ, subtype)
		if specificity < 0 || q <= 0 {
			continue
		}

		if best < 0 || q > bestQ || (q == bestQ && specificity > bestSpecificity) {
			best, bestQ, bestSpecificity = i, q, specificity
		}
	}

	if best < 0 {
		return "", false
	}

	return offers[best], true
}

// quality returns the weight of the most specific range matching typ/subtype,
// with a specificity of -1 when none does
func quality(ranges []goautoneg.Accept, typ, subtype string) (float64, int) {
	q, specificity := 0.0, -1

	for _, r := range ranges {
		s := -1

		switch {
		case r.Type == typ && r.SubType == subtype:
			s = 2
		case r.Type == typ && r.SubType == "*":
			s = 1
		case r.Type == "*" && r.SubType == "*":
			s = 0
		}

		if s > specificity {
			q, specificity = r.Q, s
		}
	}

	return q, specificity
}

func splitMediaType(mediaType string) (string, string, bool) {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}

	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(mediaType)), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	return parts[0], parts[1], true
}
