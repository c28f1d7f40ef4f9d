package dicomweb

import (
	"bytes"
	"context"
	"fmt"

	"github.com/suyashkumar/dicom"

	"github.com/mrsinham/dicomweb/related"
)

// storeContentType is the STOW-RS request framing. The boundary is fixed;
// DICOM payloads are binary-safe against it.
const storeContentType = `multipart/related; type="application/dicom"; boundary="boundary"`

// StoreInstances serializes the given datasets and stores them on the
// server, under the given study when studyUID is set.
func (c *Client) StoreInstances(ctx context.Context, datasets []dicom.Dataset, studyUID string) error {
	if len(datasets) == 0 {
		return fmt.Errorf("at least one dataset is required for storage")
	}

	parts := make([][]byte, 0, len(datasets))
	for i, ds := range datasets {
		var buf bytes.Buffer
		if err := dicom.Write(&buf, ds); err != nil {
			return fmt.Errorf("serialize dataset %d: %w", i, err)
		}
		parts = append(parts, buf.Bytes())
	}

	body, err := related.Encode(parts, storeContentType)
	if err != nil {
		return fmt.Errorf("encode store request: %w", err)
	}
	return c.httpPost(ctx, c.studiesURL(studyUID), body, storeContentType)
}
