// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-yolo/images"
)

// DefaultIoUThreshold is the overlap above which the lower-scored box is suppressed.
const DefaultIoUThreshold float32 = 0.4

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold  float32 `json:"iou_threshold" yaml:"iou_threshold"`   // Overlap threshold for suppression.
	ClassAware    bool    `json:"class_aware" yaml:"class_aware"`       // If true, suppress only within same class.
	MaxDetections int     `json:"max_detections" yaml:"max_detections"` // Cap on kept items; 0 keeps all.
}

// ApplyNMS performs standard greedy Non-Maximum Suppression.
//
// The input is stable-sorted by descending confidence, so equal scores keep their input order
// and the output is deterministic. Each kept item suppresses every later item whose IoU with it
// is strictly greater than the threshold (only within the same class when ClassAware is set).
// The input slice is not modified.
//
// Arguments:
//   - items: Candidates in any order.
//   - config: NMS configuration.
//
// Returns:
//   - The kept items, highest confidence first. If no items are provided, returns nil.
//
// Example:
//
// ```go
//
//	kept := ApplyNMS(detections, NMSConfig{IoUThreshold: 0.4, ClassAware: true})
//
// ```
func ApplyNMS[T Boxed](items []T, config NMSConfig) []T {
	n := len(items)
	if n == 0 {
		return nil
	}

	sorted := make([]T, n)
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence() > sorted[j].Confidence()
	})

	filtered := make([]T, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true
		if config.MaxDetections > 0 && len(filtered) == config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.ClassID() != sorted[j].ClassID() {
				continue
			}
			if images.CalculateIoU(anchor.Bounds(), sorted[j].Bounds()) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
