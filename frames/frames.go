// Package frames reconstructs image buffers from raw uncompressed DICOM pixel
// frames, using the photometric interpretation and geometry learned from the
// instance metadata. Compressed frames are out of scope; those go through the
// standard image decoders instead.
package frames

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// UnsupportedPhotometricInterpretationError indicates a photometric
// interpretation that cannot be mapped to a pixel layout.
type UnsupportedPhotometricInterpretationError struct {
	PhotometricInterpretation string
}

func (e *UnsupportedPhotometricInterpretationError) Error() string {
	return fmt.Sprintf("photometric interpretation %q is not supported", e.PhotometricInterpretation)
}

// Reconstruct builds an image from raw uncompressed frame bytes. The
// supported photometric interpretations and their layouts are:
//
//	MONOCHROME2  single-channel grayscale, 1 byte per pixel
//	RGB          interleaved R,G,B, 3 bytes per pixel
//	YBR_FULL_422 interleaved Y0,Y1,Cb,Cr, 4 bytes per 2 pixels
//
// The pixel bytes are copied in row-major order with no colorspace
// conversion. Any other interpretation fails with
// *UnsupportedPhotometricInterpretationError.
func Reconstruct(raw []byte, photometricInterpretation string, rows, cols int) (image.Image, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d", cols, rows)
	}

	switch photometricInterpretation {
	case "MONOCHROME2":
		return reconstructGray(raw, rows, cols)
	case "RGB":
		return reconstructRGB(raw, rows, cols)
	case "YBR_FULL_422":
		return reconstructYCbCr422(raw, rows, cols)
	default:
		return nil, &UnsupportedPhotometricInterpretationError{PhotometricInterpretation: photometricInterpretation}
	}
}

func reconstructGray(raw []byte, rows, cols int) (image.Image, error) {
	if len(raw) < rows*cols {
		return nil, fmt.Errorf("frame has %d bytes, need %d for %dx%d grayscale", len(raw), rows*cols, cols, rows)
	}
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	copy(img.Pix, raw[:rows*cols])
	return img, nil
}

func reconstructRGB(raw []byte, rows, cols int) (image.Image, error) {
	if len(raw) < rows*cols*3 {
		return nil, fmt.Errorf("frame has %d bytes, need %d for %dx%d RGB", len(raw), rows*cols*3, cols, rows)
	}
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows*cols; i++ {
		img.Pix[i*4+0] = raw[i*3+0]
		img.Pix[i*4+1] = raw[i*3+1]
		img.Pix[i*4+2] = raw[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img, nil
}

func reconstructYCbCr422(raw []byte, rows, cols int) (image.Image, error) {
	if cols%2 != 0 {
		return nil, fmt.Errorf("YBR_FULL_422 frame requires an even number of columns, got %d", cols)
	}
	if len(raw) < rows*cols*2 {
		return nil, fmt.Errorf("frame has %d bytes, need %d for %dx%d YBR_FULL_422", len(raw), rows*cols*2, cols, rows)
	}
	img := image.NewYCbCr(image.Rect(0, 0, cols, rows), image.YCbCrSubsampleRatio422)
	// De-interleave Y0,Y1,Cb,Cr groups into the image planes.
	i := 0
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x += 2 {
			img.Y[y*img.YStride+x] = raw[i]
			img.Y[y*img.YStride+x+1] = raw[i+1]
			img.Cb[y*img.CStride+x/2] = raw[i+2]
			img.Cr[y*img.CStride+x/2] = raw[i+3]
			i += 4
		}
	}
	return img, nil
}

// Scale resizes a reconstructed frame to the given viewport using bilinear
// interpolation.
func Scale(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
