// Package dicomjson converts data sets from the DICOM JSON model (DICOM PS3.18
// Annex F) into native datasets of github.com/suyashkumar/dicom.
//
// Conversion is lenient where real-world DICOMweb servers are known to be
// non-conformant: such anomalies are substituted with a best-effort value and
// reported through the returned Warnings instead of aborting the conversion.
// Structural violations of the JSON encoding rules abort with a
// *MalformedAttributeError.
package dicomjson

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// binaryVRs are the value representations whose "Value" is a raw byte blob
// rather than a JSON array.
var binaryVRs = map[string]bool{
	"OB": true,
	"OD": true,
	"OF": true,
	"OL": true,
	"OW": true,
	"UN": true,
}

// Attribute is a single attribute of a DICOM JSON object. Exactly one of
// Value, BulkDataURI or InlineBinary is expected to be set; a missing "vr"
// is a protocol error.
type Attribute struct {
	VR           string `json:"vr"`
	Value        []any  `json:"Value,omitempty"`
	BulkDataURI  string `json:"BulkDataURI,omitempty"`
	InlineBinary string `json:"InlineBinary,omitempty"`
}

// Object is a DICOM JSON data set: attributes keyed by 8-digit hexadecimal
// tag strings (e.g. "00100010").
type Object map[string]Attribute

// Warning records a tolerated non-conformance encountered during conversion.
type Warning struct {
	Tag     string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("attribute %q: %s", w.Tag, w.Message)
}

// Warnings collects non-fatal diagnostics produced by a conversion. Callers
// can inspect or log them; an empty slice means the input was fully
// conformant.
type Warnings []Warning

func (w *Warnings) add(tagStr, format string, args ...any) {
	*w = append(*w, Warning{Tag: tagStr, Message: fmt.Sprintf(format, args...)})
}

// MalformedAttributeError indicates a DICOM JSON attribute that violates the
// encoding rules of PS3.18 Annex F.
type MalformedAttributeError struct {
	Tag string
	Msg string
}

func (e *MalformedAttributeError) Error() string {
	return fmt.Sprintf("malformed attribute %q: %s", e.Tag, e.Msg)
}

// ParseTag parses an 8-digit hexadecimal tag string into a tag.Tag.
func ParseTag(s string) (tag.Tag, error) {
	if len(s) != 8 {
		return tag.Tag{}, fmt.Errorf("tag %q must be 8 hexadecimal digits", s)
	}
	group, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("tag %q: invalid group: %w", s, err)
	}
	elem, err := strconv.ParseUint(s[4:], 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("tag %q: invalid element: %w", s, err)
	}
	return tag.Tag{Group: uint16(group), Element: uint16(elem)}, nil
}

// BuildDataSet converts a DICOM JSON object into a native dataset. Attributes
// are emitted in canonical tag order. Known server non-conformances are
// substituted and reported in the returned Warnings; structural violations
// return a *MalformedAttributeError and no dataset.
func BuildDataSet(obj Object) (dicom.Dataset, Warnings, error) {
	var warns Warnings

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	elements := make([]*dicom.Element, 0, len(keys))
	for _, tagStr := range keys {
		attr := obj[tagStr]
		if attr.VR == "" {
			return dicom.Dataset{}, warns, &MalformedAttributeError{Tag: tagStr, Msg: `missing key "vr"`}
		}
		t, err := ParseTag(tagStr)
		if err != nil {
			return dicom.Dataset{}, warns, &MalformedAttributeError{Tag: tagStr, Msg: err.Error()}
		}

		rawValue := attributeRawValue(tagStr, attr, &warns)
		elem, err := BuildElement(t, attr.VR, rawValue, &warns)
		if err != nil {
			return dicom.Dataset{}, warns, err
		}
		elements = append(elements, elem)
	}
	return dicom.Dataset{Elements: elements}, warns, nil
}

// attributeRawValue extracts the raw value carried by an attribute. A missing
// "Value" key is substituted with a single absent value, mirroring what
// non-conformant servers force upon us.
func attributeRawValue(tagStr string, attr Attribute, warns *Warnings) any {
	switch {
	case attr.Value != nil:
		return attr.Value
	case attr.InlineBinary != "":
		return attr.InlineBinary
	case attr.BulkDataURI != "":
		// Bulk data is not expanded here; the URI is kept as an opaque
		// reference.
		return []any{attr.BulkDataURI}
	default:
		warns.add(tagStr, `mapping has no "Value" key`)
		return []any{nil}
	}
}

// BuildElement converts one DICOM JSON attribute value into a native data
// element. vr is the value representation declared by the attribute (which
// takes precedence over the dictionary, so private tags keep their declared
// VR). Tolerated anomalies are appended to warns.
func BuildElement(t tag.Tag, vr string, rawValue any, warns *Warnings) (*dicom.Element, error) {
	tagStr := tagString(t)

	if rawValue == nil {
		// Not validated against whether the tag is mandatory.
		warns.add(tagStr, "missing value")
		return newElement(t, vr, emptyData(t, vr))
	}

	if binaryVRs[vr] {
		return newElement(t, vr, binaryData(tagStr, rawValue, warns))
	}

	arr, ok := rawValue.([]any)
	if !ok {
		return nil, &MalformedAttributeError{Tag: tagStr, Msg: `"Value" must be an array`}
	}

	switch vr {
	case "SQ":
		return buildSequence(t, vr, arr, warns)
	case "PN":
		return newElement(t, vr, personNames(tagStr, arr, warns))
	}

	// Value multiplicity comes from the dictionary; private and otherwise
	// unregistered tags fall back to the length of the provided value, which
	// leaves the array untouched below.
	vm := ""
	if info, err := tag.Find(t); err == nil {
		vm = info.VM
	} else {
		vm = strconv.Itoa(len(arr))
	}

	if vm == "1" {
		if len(arr) > 0 {
			arr = arr[:1]
		}
		return newElement(t, vr, coerceData(t, vr, arr))
	}

	// Some servers over-escape multi-valued strings into a single JSON
	// string with backslash separators.
	if len(arr) == 1 {
		if s, ok := arr[0].(string); ok && strings.Contains(s, `\`) {
			return newElement(t, vr, strings.Split(s, `\`))
		}
	}
	return newElement(t, vr, coerceData(t, vr, arr))
}

// buildSequence handles VR SQ: a one-element array holding a mapping from
// nested tag strings to nested attribute objects. The result is a sequence
// with exactly one item containing the nested data set.
func buildSequence(t tag.Tag, vr string, arr []any, warns *Warnings) (*dicom.Element, error) {
	tagStr := tagString(t)
	if len(arr) == 0 {
		return newElement(t, vr, [][]*dicom.Element{})
	}

	item := make([]*dicom.Element, 0)
	if arr[0] != nil {
		mapping, ok := arr[0].(map[string]any)
		if !ok {
			return nil, &MalformedAttributeError{Tag: tagStr, Msg: "sequence item must be an object"}
		}

		keys := make([]string, 0, len(mapping))
		for k := range mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, nestedTagStr := range keys {
			nested, ok := mapping[nestedTagStr].(map[string]any)
			if !ok {
				return nil, &MalformedAttributeError{Tag: nestedTagStr, Msg: "sequence item attribute must be an object"}
			}
			nestedVR, ok := nested["vr"].(string)
			if !ok {
				return nil, &MalformedAttributeError{Tag: nestedTagStr, Msg: `missing key "vr"`}
			}
			nestedTag, err := ParseTag(nestedTagStr)
			if err != nil {
				return nil, &MalformedAttributeError{Tag: nestedTagStr, Msg: err.Error()}
			}

			nestedValue, found := nestedRawValue(nested)
			if !found {
				// Known server quirk: emit the element with an empty value
				// instead of failing the whole conversion.
				warns.add(nestedTagStr, `item has none of the keys "Value", "BulkDataURI" or "InlineBinary"`)
				elem, err := newElement(nestedTag, nestedVR, emptyData(nestedTag, nestedVR))
				if err != nil {
					return nil, err
				}
				item = append(item, elem)
				continue
			}

			elem, err := BuildElement(nestedTag, nestedVR, nestedValue, warns)
			if err != nil {
				return nil, err
			}
			item = append(item, elem)
		}
	}
	return newElement(t, vr, [][]*dicom.Element{item})
}

// nestedRawValue picks the value carrier of a nested sequence attribute,
// checking the supported keys in a fixed order. A BulkDataURI is kept as an
// opaque reference, like at the top level.
func nestedRawValue(nested map[string]any) (any, bool) {
	if v, ok := nested["Value"]; ok {
		return v, true
	}
	if v, ok := nested["BulkDataURI"]; ok {
		return []any{v}, true
	}
	if v, ok := nested["InlineBinary"]; ok {
		return v, true
	}
	return nil, false
}

// personNames extracts the Alphabetic component from each PN entry (DICOM
// PS3.18 F.2.2). Ideographic and Phonetic components are not selected. Some
// DICOMweb services encode PN values as plain strings; those are accepted
// verbatim with a warning rather than rejected.
func personNames(tagStr string, arr []any, warns *Warnings) []string {
	names := make([]string, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			warns.add(tagStr, "person name (PN) value is not formatted correctly")
			if v != nil {
				names = append(names, fmt.Sprint(v))
			}
			continue
		}
		if alphabetic, ok := m["Alphabetic"].(string); ok {
			names = append(names, alphabetic)
		}
	}
	return names
}

// binaryData passes a binary VR value through unchanged. InlineBinary
// payloads arrive base64-encoded and are decoded here; a BulkDataURI arrives
// wrapped in a one-element array and is kept as an opaque reference.
func binaryData(tagStr string, rawValue any, warns *Warnings) []byte {
	switch v := rawValue.(type) {
	case []byte:
		return v
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			warns.add(tagStr, "inline binary value is not valid base64")
			return []byte(v)
		}
		return decoded
	case []any:
		if len(v) == 1 {
			if s, ok := v[0].(string); ok {
				return []byte(s)
			}
		}
		warns.add(tagStr, "binary value has unexpected type %T", rawValue)
		return nil
	default:
		warns.add(tagStr, "binary value has unexpected type %T", rawValue)
		return nil
	}
}

// coerceData converts a JSON value array into the typed slice expected by the
// element's underlying representation. JSON numbers arrive as float64.
func coerceData(t tag.Tag, vr string, arr []any) any {
	switch tag.GetVRKind(t, vr) {
	case tag.VRInt16List, tag.VRInt32List, tag.VRUInt16List, tag.VRUInt32List:
		ints := make([]int, 0, len(arr))
		for _, v := range arr {
			switch n := v.(type) {
			case float64:
				ints = append(ints, int(n))
			case string:
				if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
					ints = append(ints, i)
				}
			}
		}
		return ints
	case tag.VRFloat32List, tag.VRFloat64List:
		floats := make([]float64, 0, len(arr))
		for _, v := range arr {
			switch n := v.(type) {
			case float64:
				floats = append(floats, n)
			case string:
				if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
					floats = append(floats, f)
				}
			}
		}
		return floats
	default:
		strs := make([]string, 0, len(arr))
		for _, v := range arr {
			switch s := v.(type) {
			case nil:
				// Absent value substituted upstream; keep the element empty.
			case string:
				strs = append(strs, s)
			case float64:
				strs = append(strs, strconv.FormatFloat(s, 'g', -1, 64))
			default:
				strs = append(strs, fmt.Sprint(v))
			}
		}
		return strs
	}
}

// emptyData returns the zero-length value matching the element's underlying
// representation.
func emptyData(t tag.Tag, vr string) any {
	if binaryVRs[vr] {
		return []byte{}
	}
	switch tag.GetVRKind(t, vr) {
	case tag.VRInt16List, tag.VRInt32List, tag.VRUInt16List, tag.VRUInt32List:
		return []int{}
	case tag.VRFloat32List, tag.VRFloat64List:
		return []float64{}
	case tag.VRSequence:
		return [][]*dicom.Element{}
	default:
		return []string{}
	}
}

// newElement creates a DICOM element with an explicit VR. dicom.NewElement
// derives the VR from the dictionary and fails on unregistered private tags,
// so the element is assembled directly.
func newElement(t tag.Tag, rawVR string, data any) (*dicom.Element, error) {
	value, err := dicom.NewValue(data)
	if err != nil {
		return nil, fmt.Errorf("create value for element %s: %w", tagString(t), err)
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, rawVR),
		RawValueRepresentation: rawVR,
		Value:                  value,
	}, nil
}

func tagString(t tag.Tag) string {
	return fmt.Sprintf("%04X%04X", t.Group, t.Element)
}
