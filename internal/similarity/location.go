package similarity

import "strings"

// stateAliases maps US state abbreviations to full names so
// "Austin, TX" and "Austin, Texas" normalize identically. Lookup is on
// whole tokens only; "in" the preposition never appears here because
// locations are token streams, not prose.
var stateAliases = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut",
	"de": "delaware", "fl": "florida", "ga": "georgia", "hi": "hawaii",
	"id": "idaho", "il": "illinois", "in": "indiana", "ia": "iowa",
	"ks": "kansas", "ky": "kentucky", "la": "louisiana", "me": "maine",
	"md": "maryland", "ma": "massachusetts", "mi": "michigan",
	"mn": "minnesota", "ms": "mississippi", "mo": "missouri",
	"mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico",
	"ny": "new york", "nc": "north carolina", "nd": "north dakota",
	"oh": "ohio", "ok": "oklahoma", "or": "oregon", "pa": "pennsylvania",
	"ri": "rhode island", "sc": "south carolina", "sd": "south dakota",
	"tn": "tennessee", "tx": "texas", "ut": "utah", "vt": "vermont",
	"va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

// remoteMarkers are location strings that mean "no fixed locale".
var remoteMarkers = map[string]struct{}{
	"remote": {}, "fully remote": {}, "work from home": {}, "wfh": {},
	"anywhere": {}, "distributed": {},
}

// NormalizeLocation expands state abbreviations and canonicalizes casing
// and punctuation in a location string.
func NormalizeLocation(loc string) string {
	tokens := Tokenize(loc)
	for i, tok := range tokens {
		if full, ok := stateAliases[tok]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// IsRemote reports whether a location string is a remote marker.
func IsRemote(loc string) bool {
	_, ok := remoteMarkers[strings.Join(Tokenize(loc), " ")]
	return ok
}

// Location scores two locations. Matching remote flags count as a full
// match regardless of any named locale; otherwise the alias-normalized
// strings are compared by edit similarity.
func Location(locA string, remoteA bool, locB string, remoteB bool) float64 {
	remoteA = remoteA || IsRemote(locA)
	remoteB = remoteB || IsRemote(locB)
	if remoteA && remoteB {
		return 1.0
	}
	if remoteA != remoteB {
		return 0.0
	}

	na, nb := NormalizeLocation(locA), NormalizeLocation(locB)
	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}
	return editSimilarity(na, nb)
}
