package dicomweb

import (
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomweb/dicomjson"
)

// LookupKeyword looks up the keyword of a DICOM attribute given its 8-digit
// hex tag string (e.g. "00080018" -> "SOPInstanceUID").
func LookupKeyword(tagStr string) (string, error) {
	t, err := dicomjson.ParseTag(tagStr)
	if err != nil {
		return "", err
	}
	info, err := tag.Find(t)
	if err != nil {
		return "", fmt.Errorf("tag %q is not in the dictionary: %w", tagStr, err)
	}
	return info.Keyword, nil
}

// LookupTag looks up the tag of a DICOM attribute given its keyword, returned
// as an 8-digit hex string (e.g. "SOPInstanceUID" -> "00080018").
func LookupTag(keyword string) (string, error) {
	info, err := tag.FindByName(keyword)
	if err != nil {
		return "", fmt.Errorf("keyword %q is not in the dictionary: %w", keyword, err)
	}
	return fmt.Sprintf("%04x%04x", info.Tag.Group, info.Tag.Element), nil
}
