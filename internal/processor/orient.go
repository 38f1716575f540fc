package processor

import (
	"errors"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
)

const orientationNormal = 1

// readOrientation returns the EXIF Orientation of the primary image, or 1
// when the file has no EXIF block or the tag is missing or malformed. An
// unreadable EXIF block is reported alongside the default.
func readOrientation(rs io.ReadSeeker) (int, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return orientationNormal, err
	}

	// The flat parsers expect the TIFF header at offset zero, so locate the
	// EXIF block inside the container first.
	raw, err := exif.SearchAndExtractExifWithReader(rs)
	if err != nil {
		if isNoExif(err) {
			return orientationNormal, nil
		}
		return orientationNormal, err
	}

	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return orientationNormal, err
	}

	for _, tag := range tags {
		if tag.TagName != "Orientation" || tag.IfdPath != "IFD" {
			continue
		}
		if v, ok := tag.Value.([]uint16); ok && len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0]), nil
		}
		return orientationNormal, nil
	}
	return orientationNormal, nil
}

// applyOrientation turns stored pixels into their display orientation.
// Re-encoding drops EXIF, so this has to happen before anything is written.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// go-exif wraps its sentinels, so fall back to the message when the chain
// does not unwrap.
func isNoExif(err error) bool {
	if errors.Is(err, exif.ErrNoExif) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
