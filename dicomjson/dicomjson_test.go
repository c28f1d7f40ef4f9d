package dicomjson

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestBuildDataSet_PersonName(t *testing.T) {
	obj := Object{
		"00100010": {VR: "PN", Value: []any{map[string]any{"Alphabetic": "Doe^John"}}},
	}

	ds, warns, err := BuildDataSet(obj)
	if err != nil {
		t.Fatalf("BuildDataSet failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}
	if len(ds.Elements) != 1 {
		t.Fatalf("Expected 1 element, got %d", len(ds.Elements))
	}

	elem := ds.Elements[0]
	if elem.Tag != (tag.Tag{Group: 0x0010, Element: 0x0010}) {
		t.Errorf("Expected tag (0010,0010), got %v", elem.Tag)
	}
	values := elem.Value.GetValue().([]string)
	if len(values) != 1 || values[0] != "Doe^John" {
		t.Errorf("Expected [Doe^John], got %v", values)
	}
}

func TestBuildDataSet_MissingVR(t *testing.T) {
	obj := Object{
		"00100010": {Value: []any{"Doe^John"}},
	}

	_, _, err := BuildDataSet(obj)
	var malformed *MalformedAttributeError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected MalformedAttributeError, got %v", err)
	}
	if malformed.Tag != "00100010" {
		t.Errorf("Expected error tag 00100010, got %s", malformed.Tag)
	}
}

func TestBuildDataSet_MissingValue(t *testing.T) {
	obj := Object{
		"00080060": {VR: "CS"},
	}

	ds, warns, err := BuildDataSet(obj)
	if err != nil {
		t.Fatalf("BuildDataSet failed: %v", err)
	}
	if len(warns) != 1 {
		t.Fatalf("Expected 1 warning, got %v", warns)
	}
	if !strings.Contains(warns[0].Message, `no "Value" key`) {
		t.Errorf("Unexpected warning: %v", warns[0])
	}
	if len(ds.Elements) != 1 {
		t.Fatalf("Expected 1 element, got %d", len(ds.Elements))
	}
	values := ds.Elements[0].Value.GetValue().([]string)
	if len(values) != 0 {
		t.Errorf("Expected empty value, got %v", values)
	}
}

func TestBuildElement_ScalarVM1(t *testing.T) {
	var warns Warnings
	elem, err := BuildElement(tag.SOPInstanceUID, "UI", []any{"1.2.3"}, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	values := elem.Value.GetValue().([]string)
	if len(values) != 1 || values[0] != "1.2.3" {
		t.Errorf("Expected [1.2.3], got %v", values)
	}
}

func TestBuildElement_NumericScalar(t *testing.T) {
	var warns Warnings
	// JSON numbers arrive as float64.
	elem, err := BuildElement(tag.Rows, "US", []any{float64(128)}, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	values := elem.Value.GetValue().([]int)
	if len(values) != 1 || values[0] != 128 {
		t.Errorf("Expected [128], got %v", values)
	}
}

func TestBuildElement_BackslashSplit(t *testing.T) {
	var warns Warnings
	elem, err := BuildElement(tag.ImageType, "CS", []any{`ORIGINAL\PRIMARY\AXIAL`}, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	values := elem.Value.GetValue().([]string)
	want := []string{"ORIGINAL", "PRIMARY", "AXIAL"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("Expected %v, got %v", want, values)
	}
}

func TestBuildElement_MultiValuedPassThrough(t *testing.T) {
	var warns Warnings
	elem, err := BuildElement(tag.ImageType, "CS", []any{"ORIGINAL", "PRIMARY"}, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	values := elem.Value.GetValue().([]string)
	want := []string{"ORIGINAL", "PRIMARY"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("Expected %v, got %v", want, values)
	}
}

func TestBuildElement_NonArrayValue(t *testing.T) {
	var warns Warnings
	_, err := BuildElement(tag.PatientID, "LO", "notanarray", &warns)
	var malformed *MalformedAttributeError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected MalformedAttributeError, got %v", err)
	}
	if !strings.Contains(malformed.Msg, "must be an array") {
		t.Errorf("Unexpected error message: %s", malformed.Msg)
	}
}

func TestBuildElement_BinaryPassThrough(t *testing.T) {
	var warns Warnings
	raw := []byte{0x01, 0x02, 0x03}
	elem, err := BuildElement(tag.Tag{Group: 0x0009, Element: 0x0101}, "OB", raw, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	got := elem.Value.GetValue().([]byte)
	if !reflect.DeepEqual(got, raw) {
		t.Errorf("Expected %v, got %v", raw, got)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}
}

func TestBuildElement_InlineBinaryBase64(t *testing.T) {
	var warns Warnings
	elem, err := BuildElement(tag.Tag{Group: 0x0009, Element: 0x0101}, "OB", "AQID", &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	got := elem.Value.GetValue().([]byte)
	want := []byte{0x01, 0x02, 0x03}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestBuildDataSet_BulkDataURIReference(t *testing.T) {
	obj := Object{
		"7FE00010": {VR: "OW", BulkDataURI: "http://archive.example.com/bulk/1"},
	}

	ds, warns, err := BuildDataSet(obj)
	if err != nil {
		t.Fatalf("BuildDataSet failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}
	got := ds.Elements[0].Value.GetValue().([]byte)
	if string(got) != "http://archive.example.com/bulk/1" {
		t.Errorf("Expected opaque bulk data reference, got %q", got)
	}
}

func TestBuildElement_PrivateTagFallback(t *testing.T) {
	var warns Warnings
	// Unregistered private tag: the VM falls back to the length of the
	// value, which keeps the array untouched.
	elem, err := BuildElement(tag.Tag{Group: 0x0009, Element: 0x0001}, "LO", []any{"a", "b"}, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	values := elem.Value.GetValue().([]string)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("Expected %v, got %v", want, values)
	}
	if elem.RawValueRepresentation != "LO" {
		t.Errorf("Expected declared VR to be kept, got %s", elem.RawValueRepresentation)
	}
}

func TestBuildElement_NilValue(t *testing.T) {
	var warns Warnings
	elem, err := BuildElement(tag.PatientID, "LO", nil, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	if len(warns) != 1 || !strings.Contains(warns[0].Message, "missing value") {
		t.Errorf("Expected missing-value warning, got %v", warns)
	}
	values := elem.Value.GetValue().([]string)
	if len(values) != 0 {
		t.Errorf("Expected empty value, got %v", values)
	}
}

func TestBuildElement_PNNonMapping(t *testing.T) {
	var warns Warnings
	elem, err := BuildElement(tag.PatientName, "PN", []any{"Doe^John"}, &warns)
	if err != nil {
		t.Fatalf("BuildElement failed: %v", err)
	}
	if len(warns) != 1 {
		t.Fatalf("Expected 1 warning, got %v", warns)
	}
	values := elem.Value.GetValue().([]string)
	if len(values) != 1 || values[0] != "Doe^John" {
		t.Errorf("Expected verbatim [Doe^John], got %v", values)
	}
}

func TestBuildElement_Sequence(t *testing.T) {
	obj := Object{
		"0008114A": {VR: "SQ", Value: []any{
			map[string]any{
				"00080018": map[string]any{"vr": "UI", "Value": []any{"1.2.3"}},
			},
		}},
	}

	ds, warns, err := BuildDataSet(obj)
	if err != nil {
		t.Fatalf("BuildDataSet failed: %v", err)
	}
	if len(warns) != 0 {
		t.Errorf("Expected no warnings, got %v", warns)
	}

	elem := ds.Elements[0]
	items := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if len(items) != 1 {
		t.Fatalf("Expected 1 sequence item, got %d", len(items))
	}
	nested := items[0].GetValue().([]*dicom.Element)
	if len(nested) != 1 {
		t.Fatalf("Expected 1 nested element, got %d", len(nested))
	}
	if nested[0].Tag != tag.SOPInstanceUID {
		t.Errorf("Expected nested tag (0008,0018), got %v", nested[0].Tag)
	}
	values := nested[0].Value.GetValue().([]string)
	if len(values) != 1 || values[0] != "1.2.3" {
		t.Errorf("Expected [1.2.3], got %v", values)
	}
}

func TestBuildElement_SequenceMissingNestedVR(t *testing.T) {
	var warns Warnings
	rawValue := []any{
		map[string]any{
			"00080018": map[string]any{"Value": []any{"1.2.3"}},
		},
	}
	_, err := BuildElement(tag.ReferencedImageSequence, "SQ", rawValue, &warns)
	var malformed *MalformedAttributeError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected MalformedAttributeError, got %v", err)
	}
}

func TestBuildElement_SequenceMissingValueCarriers(t *testing.T) {
	var warns Warnings
	rawValue := []any{
		map[string]any{
			"00080018": map[string]any{"vr": "UI"},
		},
	}
	elem, err := BuildElement(tag.ReferencedImageSequence, "SQ", rawValue, &warns)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(warns) != 1 {
		t.Fatalf("Expected 1 warning, got %v", warns)
	}

	items := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if len(items) != 1 {
		t.Fatalf("Expected 1 sequence item, got %d", len(items))
	}
	nested := items[0].GetValue().([]*dicom.Element)
	if len(nested) != 1 {
		t.Fatalf("Expected 1 nested element, got %d", len(nested))
	}
	values := nested[0].Value.GetValue().([]string)
	if len(values) != 0 {
		t.Errorf("Expected empty value, got %v", values)
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    tag.Tag
		wantErr bool
	}{
		{name: "patient_name", input: "00100010", want: tag.Tag{Group: 0x0010, Element: 0x0010}},
		{name: "sop_instance_uid", input: "00080018", want: tag.Tag{Group: 0x0008, Element: 0x0018}},
		{name: "lowercase_hex", input: "0008114a", want: tag.Tag{Group: 0x0008, Element: 0x114A}},
		{name: "too_short", input: "0010", wantErr: true},
		{name: "not_hex", input: "0010001G", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTag(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTag(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
