package images

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// AspectRatio represents a camera aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Common aspect ratios for webcams and surveillance cameras.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
)

// ResolutionType names a capture resolution preset.
type ResolutionType string

// Capture presets, from smallest to largest.
const (
	ResolutionTypeQVGA     ResolutionType = "qvga"
	ResolutionTypeNHD      ResolutionType = "nhd"
	ResolutionTypeVGA      ResolutionType = "vga"
	ResolutionTypeQHD540   ResolutionType = "540p"
	ResolutionTypeHD720p   ResolutionType = "720p"
	ResolutionTypeFHD1080p ResolutionType = "1080p"
	ResolutionTypeQHD1440p ResolutionType = "1440p"
	ResolutionType4KUHD    ResolutionType = "4k"
)

// Resolution is a capture preset.
type Resolution struct {
	Name        ResolutionType `json:"name"`
	AspectRatio AspectRatio    `json:"aspect_ratio"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
}

// Size returns the preset as a point.
func (r Resolution) Size() image.Point {
	return image.Pt(r.Width, r.Height)
}

// GetMegaPixels returns the pixel count in megapixels, rounded to two decimals.
func (r Resolution) GetMegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return math.Round(float64(r.Width*r.Height)/10_000) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Width, r.Height, r.GetMegaPixels())
}

var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeQVGA:     {ResolutionTypeQVGA, AspectRatio43, 320, 240},
	ResolutionTypeNHD:      {ResolutionTypeNHD, AspectRatio169, 640, 360},
	ResolutionTypeVGA:      {ResolutionTypeVGA, AspectRatio43, 640, 480},
	ResolutionTypeQHD540:   {ResolutionTypeQHD540, AspectRatio169, 960, 540},
	ResolutionTypeHD720p:   {ResolutionTypeHD720p, AspectRatio169, 1280, 720},
	ResolutionTypeFHD1080p: {ResolutionTypeFHD1080p, AspectRatio169, 1920, 1080},
	ResolutionTypeQHD1440p: {ResolutionTypeQHD1440p, AspectRatio169, 2560, 1440},
	ResolutionType4KUHD:    {ResolutionType4KUHD, AspectRatio169, 3840, 2160},
}

// GetAllResolutions returns every preset ordered by pixel count.
func GetAllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Width*all[i].Height < all[j].Width*all[j].Height
	})
	return all
}

// GetResolutionByType retrieves a preset by name, ignoring case.
//
// Arguments:
//   - name: The preset name, e.g. "720p".
//
// Returns:
//   - Resolution: The preset.
//   - error: An error if the name is unknown.
func GetResolutionByType(name string) (Resolution, error) {
	res, ok := resolutions[ResolutionType(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return Resolution{}, errors.Errorf("unknown resolution: %q", name)
	}
	return res, nil
}

// GetHighestResolutionUnderDimensions returns the largest preset that fits in width x height.
//
// Arguments:
//   - width: The maximum width.
//   - height: The maximum height.
//
// Returns:
//   - Resolution: The largest fitting preset.
//   - bool: False when no preset fits.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool
	for _, res := range resolutions {
		if res.Width <= width && res.Height <= height {
			if !found || res.Width*res.Height > highest.Width*highest.Height {
				highest = res
				found = true
			}
		}
	}
	return highest, found
}
