// Package tags normalizes DICOM attribute identifiers used as search filter
// keys: either a keyword ("PatientName") or an 8-digit hexadecimal tag string
// ("00100010").
package tags

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

var hexTagPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}$`)

// Normalize validates a filter key and returns its canonical form: the
// dictionary keyword when the key names a registered attribute, or the
// uppercased hex string for tag-form keys (private tags are allowed there).
// Unknown keywords are rejected with a suggestion for the closest known
// filter keyword.
func Normalize(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("filter key must not be empty")
	}

	if hexTagPattern.MatchString(key) {
		return strings.ToUpper(key), nil
	}

	info, err := tag.FindByName(key)
	if err == nil {
		return info.Keyword, nil
	}

	if suggestion := closestKeyword(strings.ToLower(key)); suggestion != "" {
		return "", fmt.Errorf("unknown attribute keyword %q, did you mean %q?", key, suggestion)
	}
	return "", fmt.Errorf("unknown attribute keyword %q", key)
}

// filterKeywords lists the attributes commonly used as QIDO-RS search
// filters, for typo suggestions only; Normalize accepts any dictionary
// keyword.
var filterKeywords = []string{
	"PatientName",
	"PatientID",
	"PatientBirthDate",
	"PatientSex",
	"StudyInstanceUID",
	"StudyDate",
	"StudyTime",
	"StudyDescription",
	"StudyID",
	"AccessionNumber",
	"ReferringPhysicianName",
	"InstitutionName",
	"ModalitiesInStudy",
	"SeriesInstanceUID",
	"SeriesNumber",
	"SeriesDescription",
	"Modality",
	"BodyPartExamined",
	"SOPInstanceUID",
	"SOPClassUID",
	"InstanceNumber",
}

// closestKeyword finds the closest matching filter keyword using Levenshtein
// distance. Returns empty string if no close match is found (distance > 5).
func closestKeyword(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for _, keyword := range filterKeywords {
		distance := levenshteinDistance(input, strings.ToLower(keyword))
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = keyword
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshteinDistance calculates the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string
// into the other.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}

	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}
