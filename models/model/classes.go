package model

// UnknownClass is the label for an index outside the class set.
const UnknownClass = "unknown"

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// OutputClassSet ties a family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Style Family
	// Classes that are supported and mappable.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a set whose indices follow the order of names.
func NewOutputClassSet(style Family, names ...string) *OutputClassSet {
	s := &OutputClassSet{Style: style, Classes: make([]OutputClass, len(names))}
	for i, n := range names {
		s.Classes[i] = OutputClass{Index: i, Name: n}
	}
	s.BuildNameIndexMap()
	return s
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// Len returns the number of classes; a nil set has none.
func (s *OutputClassSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Classes)
}

// Name returns the label for idx, or UnknownClass when idx is out of range.
func (s *OutputClassSet) Name(idx int) string {
	if s == nil || idx < 0 || idx >= len(s.Classes) {
		return UnknownClass
	}
	return s.Classes[idx].Name
}

// Index returns the index for a label.
func (s *OutputClassSet) Index(name string) (int, bool) {
	if s == nil {
		return -1, false
	}
	idx, ok := s.nameToIdx[name]
	return idx, ok
}

// YOLOClasses is the 80 COCO classes in YOLO order (no background class).
var YOLOClasses = NewOutputClassSet(ModelFamilyYOLO,
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog",
	"horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich",
	"orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
)
