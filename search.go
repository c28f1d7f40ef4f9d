package dicomweb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mrsinham/dicomweb/dicomjson"
	"github.com/mrsinham/dicomweb/internal/tags"
)

// SearchOptions narrows a QIDO-RS search. Nil pointer fields are omitted
// from the query.
type SearchOptions struct {
	// FuzzyMatching asks the server for fuzzy semantic matching.
	FuzzyMatching *bool
	// Limit is the maximum number of results to return.
	Limit *int
	// Offset is the number of results to skip.
	Offset *int
	// Fields lists attributes to include in the results, by keyword or
	// 8-digit hex tag.
	Fields []string
	// Filters are matching criteria keyed by attribute keyword or 8-digit
	// hex tag.
	Filters map[string]string
}

// queryParameters assembles and validates the QIDO query parameters. The
// encoded form is deterministic (keys are sorted by url.Values).
func (o SearchOptions) queryParameters() (url.Values, error) {
	params := url.Values{}
	if o.Limit != nil {
		if *o.Limit < 0 {
			return nil, fmt.Errorf("limit must not be negative, got %d", *o.Limit)
		}
		params.Set("limit", strconv.Itoa(*o.Limit))
	}
	if o.Offset != nil {
		if *o.Offset < 0 {
			return nil, fmt.Errorf("offset must not be negative, got %d", *o.Offset)
		}
		params.Set("offset", strconv.Itoa(*o.Offset))
	}
	if o.FuzzyMatching != nil {
		params.Set("fuzzymatching", strconv.FormatBool(*o.FuzzyMatching))
	}
	for _, field := range o.Fields {
		key, err := tags.Normalize(field)
		if err != nil {
			return nil, fmt.Errorf("invalid includefield: %w", err)
		}
		params.Add("includefield", key)
	}
	for field, criterion := range o.Filters {
		key, err := tags.Normalize(field)
		if err != nil {
			return nil, fmt.Errorf("invalid search filter: %w", err)
		}
		params.Set(key, criterion)
	}
	return params, nil
}

// SearchStudies searches DICOM studies and returns the matching entries in
// DICOM JSON form.
func (c *Client) SearchStudies(ctx context.Context, opts SearchOptions) ([]dicomjson.Object, error) {
	params, err := opts.queryParameters()
	if err != nil {
		return nil, err
	}
	return c.getJSON(ctx, c.studiesURL(""), params)
}

// SearchSeries searches DICOM series, within one study when studyUID is set.
func (c *Client) SearchSeries(ctx context.Context, studyUID string, opts SearchOptions) ([]dicomjson.Object, error) {
	params, err := opts.queryParameters()
	if err != nil {
		return nil, err
	}
	return c.getJSON(ctx, c.seriesURL(studyUID, ""), params)
}

// SearchInstances searches DICOM instances, within one study or series when
// the corresponding UIDs are set.
func (c *Client) SearchInstances(ctx context.Context, studyUID, seriesUID string, opts SearchOptions) ([]dicomjson.Object, error) {
	params, err := opts.queryParameters()
	if err != nil {
		return nil, err
	}
	return c.getJSON(ctx, c.instancesURL(studyUID, seriesUID, ""), params)
}
