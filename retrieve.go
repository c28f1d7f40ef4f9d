package dicomweb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	neturl "net/url"
	"strconv"
	"strings"

	// Rendered frames are delegated to the standard image decoders.
	_ "image/jpeg"
	_ "image/png"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/dicomweb/dicomjson"
	"github.com/mrsinham/dicomweb/frames"
)

const (
	acceptDICOM       = `multipart/related; type="application/dicom"`
	acceptOctetStream = `multipart/related; type="application/octet-stream"`
)

// RetrieveStudy retrieves all instances of a study as parsed datasets.
func (c *Client) RetrieveStudy(ctx context.Context, studyUID string) ([]dicom.Dataset, error) {
	if studyUID == "" {
		return nil, fmt.Errorf("study UID is required for retrieval of study")
	}
	return c.retrieveDatasets(ctx, c.studiesURL(studyUID))
}

// RetrieveSeries retrieves all instances of a series as parsed datasets.
func (c *Client) RetrieveSeries(ctx context.Context, studyUID, seriesUID string) ([]dicom.Dataset, error) {
	if studyUID == "" {
		return nil, fmt.Errorf("study UID is required for retrieval of series")
	}
	if seriesUID == "" {
		return nil, fmt.Errorf("series UID is required for retrieval of series")
	}
	return c.retrieveDatasets(ctx, c.seriesURL(studyUID, seriesUID))
}

// RetrieveInstance retrieves an individual instance as a parsed dataset.
func (c *Client) RetrieveInstance(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicom.Dataset, error) {
	if studyUID == "" {
		return dicom.Dataset{}, fmt.Errorf("study UID is required for retrieval of instance")
	}
	if seriesUID == "" {
		return dicom.Dataset{}, fmt.Errorf("series UID is required for retrieval of instance")
	}
	if sopInstanceUID == "" {
		return dicom.Dataset{}, fmt.Errorf("instance UID is required for retrieval of instance")
	}
	datasets, err := c.retrieveDatasets(ctx, c.instancesURL(studyUID, seriesUID, sopInstanceUID))
	if err != nil {
		return dicom.Dataset{}, err
	}
	if len(datasets) == 0 {
		return dicom.Dataset{}, fmt.Errorf("instance %s: response contained no dataset", sopInstanceUID)
	}
	return datasets[0], nil
}

// retrieveDatasets fetches a multipart application/dicom resource and parses
// each part.
func (c *Client) retrieveDatasets(ctx context.Context, rawURL string) ([]dicom.Dataset, error) {
	parts, err := c.getMultipart(ctx, rawURL, nil, acceptDICOM)
	if err != nil {
		return nil, err
	}
	datasets := make([]dicom.Dataset, 0, len(parts))
	for i, part := range parts {
		ds, err := dicom.Parse(bytes.NewReader(part), int64(len(part)), nil)
		if err != nil {
			return nil, fmt.Errorf("parse DICOM part %d: %w", i, err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

// RetrieveStudyMetadata retrieves the metadata of all instances of a study in
// DICOM JSON form.
func (c *Client) RetrieveStudyMetadata(ctx context.Context, studyUID string) ([]dicomjson.Object, error) {
	if studyUID == "" {
		return nil, fmt.Errorf("study UID is required for retrieval of study metadata")
	}
	return c.getJSON(ctx, c.studiesURL(studyUID)+"/metadata", nil)
}

// RetrieveSeriesMetadata retrieves the metadata of all instances of a series
// in DICOM JSON form.
func (c *Client) RetrieveSeriesMetadata(ctx context.Context, studyUID, seriesUID string) ([]dicomjson.Object, error) {
	if studyUID == "" {
		return nil, fmt.Errorf("study UID is required for retrieval of series metadata")
	}
	if seriesUID == "" {
		return nil, fmt.Errorf("series UID is required for retrieval of series metadata")
	}
	return c.getJSON(ctx, c.seriesURL(studyUID, seriesUID)+"/metadata", nil)
}

// RetrieveInstanceMetadata retrieves the metadata of an individual instance
// in DICOM JSON form.
func (c *Client) RetrieveInstanceMetadata(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicomjson.Object, error) {
	if studyUID == "" {
		return nil, fmt.Errorf("study UID is required for retrieval of instance metadata")
	}
	if seriesUID == "" {
		return nil, fmt.Errorf("series UID is required for retrieval of instance metadata")
	}
	if sopInstanceUID == "" {
		return nil, fmt.Errorf("instance UID is required for retrieval of instance metadata")
	}
	objects, err := c.getJSON(ctx, c.instancesURL(studyUID, seriesUID, sopInstanceUID)+"/metadata", nil)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("instance %s: metadata response was empty", sopInstanceUID)
	}
	return objects[0], nil
}

// RetrieveInstanceFrames retrieves uncompressed frames of the pixel data
// element of an instance and reconstructs them into images. The frame
// geometry and photometric interpretation come from a prior metadata fetch.
// frameNumbers are one-based positional indices.
func (c *Client) RetrieveInstanceFrames(ctx context.Context, studyUID, seriesUID, sopInstanceUID string, frameNumbers []int) ([]image.Image, error) {
	if len(frameNumbers) == 0 {
		return nil, fmt.Errorf("at least one frame number is required")
	}

	metadata, err := c.RetrieveInstanceMetadata(ctx, studyUID, seriesUID, sopInstanceUID)
	if err != nil {
		return nil, err
	}
	ds, warns, err := dicomjson.BuildDataSet(metadata)
	if err != nil {
		return nil, fmt.Errorf("convert instance metadata: %w", err)
	}
	c.logWarnings(warns)

	photometric, err := datasetString(ds, tag.PhotometricInterpretation)
	if err != nil {
		return nil, err
	}
	rows, err := datasetInt(ds, tag.Rows)
	if err != nil {
		return nil, err
	}
	cols, err := datasetInt(ds, tag.Columns)
	if err != nil {
		return nil, err
	}

	url := c.instancesURL(studyUID, seriesUID, sopInstanceUID) + "/frames/" + frameList(frameNumbers)
	parts, err := c.getMultipart(ctx, url, nil, acceptOctetStream)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, 0, len(parts))
	for i, part := range parts {
		img, err := frames.Reconstruct(part, photometric, rows, cols)
		if err != nil {
			return nil, fmt.Errorf("reconstruct frame %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// RetrieveInstanceFramesRendered retrieves compressed, server-rendered frames
// of an instance. compression selects the image format, "jpeg" or "png".
func (c *Client) RetrieveInstanceFramesRendered(ctx context.Context, studyUID, seriesUID, sopInstanceUID string, frameNumbers []int, compression string) ([]image.Image, error) {
	if len(frameNumbers) == 0 {
		return nil, fmt.Errorf("at least one frame number is required")
	}
	if compression != "jpeg" && compression != "png" {
		return nil, fmt.Errorf("compression format %q is not supported", compression)
	}
	if studyUID == "" || seriesUID == "" || sopInstanceUID == "" {
		return nil, fmt.Errorf("study, series and instance UIDs are required for retrieval of rendered frames")
	}

	url := c.instancesURL(studyUID, seriesUID, sopInstanceUID) + "/frames/" + frameList(frameNumbers) + "/rendered"
	accept := fmt.Sprintf(`multipart/related; type="image/%s"`, compression)
	parts, err := c.getMultipart(ctx, url, neturl.Values{"quality": {"100"}}, accept)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, 0, len(parts))
	for i, part := range parts {
		img, _, err := image.Decode(bytes.NewReader(part))
		if err != nil {
			return nil, fmt.Errorf("decode rendered frame %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// frameList renders one-based frame numbers as the comma-separated path
// segment of the frames resource.
func frameList(frameNumbers []int) string {
	numbers := make([]string, len(frameNumbers))
	for i, n := range frameNumbers {
		numbers[i] = strconv.Itoa(n)
	}
	return strings.Join(numbers, ",")
}

// datasetString returns the first string value of an element.
func datasetString(ds dicom.Dataset, t tag.Tag) (string, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return "", fmt.Errorf("metadata has no element %s: %w", t, err)
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return "", fmt.Errorf("element %s has no string value", t)
	}
	return values[0], nil
}

// datasetInt returns the first integer value of an element.
func datasetInt(ds dicom.Dataset, t tag.Tag) (int, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, fmt.Errorf("metadata has no element %s: %w", t, err)
	}
	values, ok := elem.Value.GetValue().([]int)
	if !ok || len(values) == 0 {
		return 0, fmt.Errorf("element %s has no integer value", t)
	}
	return values[0], nil
}
