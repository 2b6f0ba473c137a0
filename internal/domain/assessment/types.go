package assessment

// Axis is one of the four binary dimensions whose letter combination forms a type.
type Axis string

const (
	AxisIE Axis = "IE"
	AxisSN Axis = "SN"
	AxisTF Axis = "TF"
	AxisJP Axis = "JP"
)

// Axes is the canonical axis order. Iteration over axis maps always goes through it.
var Axes = []Axis{AxisIE, AxisSN, AxisTF, AxisJP}

var axisLetters = map[Axis][2]byte{
	AxisIE: {'I', 'E'},
	AxisSN: {'S', 'N'},
	AxisTF: {'T', 'F'},
	AxisJP: {'J', 'P'},
}

func (a Axis) Valid() bool {
	_, ok := axisLetters[a]
	return ok
}

// Index is the letter position of the axis inside a 4-letter type label.
func (a Axis) Index() int {
	for i, ax := range Axes {
		if ax == a {
			return i
		}
	}
	return -1
}

// FirstLetter is the letter a positive axis score points to (I, S, T or J).
func (a Axis) FirstLetter() byte { return axisLetters[a][0] }

func (a Axis) SecondLetter() byte { return axisLetters[a][1] }

type MBTIType string

var MBTITypes = []MBTIType{
	"ISTJ", "ISFJ", "INFJ", "INTJ",
	"ISTP", "ISFP", "INFP", "INTP",
	"ESTP", "ESFP", "ENFP", "ENTP",
	"ESTJ", "ESFJ", "ENFJ", "ENTJ",
}

func (t MBTIType) Valid() bool {
	for _, v := range MBTITypes {
		if v == t {
			return true
		}
	}
	return false
}

// HasFirstLetter reports whether the type resolves axis a to its first letter.
func (t MBTIType) HasFirstLetter(a Axis) bool {
	idx := a.Index()
	if idx < 0 || idx >= len(t) {
		return false
	}
	return t[idx] == a.FirstLetter()
}

type EnneagramType string

var EnneagramTypes = []EnneagramType{"1", "2", "3", "4", "5", "6", "7", "8", "9"}

func (t EnneagramType) Valid() bool {
	return len(t) == 1 && t[0] >= '1' && t[0] <= '9'
}

type Answer string

const (
	AnswerYes Answer = "yes"
	AnswerNo  Answer = "no"
)

var Answers = []Answer{AnswerYes, AnswerNo}

func (a Answer) Valid() bool { return a == AnswerYes || a == AnswerNo }

// Sign is +1 for yes and -1 for no.
func (a Answer) Sign() float64 {
	if a == AnswerYes {
		return 1
	}
	return -1
}

// Phase is the coarse session stage gating which question modes are eligible.
type Phase string

const (
	PhaseA Phase = "A"
	PhaseB Phase = "B"
	PhaseC Phase = "C"
)

type Mode string

const (
	ModeAxisScan   Mode = "axis_scan"
	ModeTieBreak   Mode = "tie_break"
	ModeValidation Mode = "validation"
)

type Context string

const (
	ContextWork    Context = "work"
	ContextPrivate Context = "private"
	ContextDaily   Context = "daily"
)

type Pattern string

const (
	PatternBehavior     Pattern = "behavior"
	PatternInternal     Pattern = "internal"
	PatternJudgment     Pattern = "judgment"
	PatternIncongruence Pattern = "incongruence"
)

// TypeCandidate is one ranked entry of a posterior.
type TypeCandidate struct {
	Type string  `json:"type"`
	P    float64 `json:"p"`
}

type Summary struct {
	MBTITop3      []TypeCandidate `json:"mbtiTop3"`
	EnneagramTop2 []TypeCandidate `json:"enneagramTop2"`
	Conflicts     []string        `json:"conflicts"`
}

type Progress struct {
	Current int     `json:"current"`
	Max     int     `json:"max"`
	Ratio   float64 `json:"ratio"`
}

func NewProgress(current, max int) Progress {
	ratio := 0.0
	if max > 0 {
		ratio = float64(current) / float64(max)
		if ratio > 1 {
			ratio = 1
		}
	}
	return Progress{Current: current, Max: max, Ratio: ratio}
}
