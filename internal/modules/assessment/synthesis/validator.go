package synthesis

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
)

// Reason codes reported by Validate.
const (
	ReasonLengthOutOfRange          = "length_out_of_range"
	ReasonTooManyTokens             = "too_many_tokens"
	ReasonBannedHedgeWord           = "banned_hedge_word"
	ReasonInterrogativeForm         = "interrogative_form"
	ReasonAbstractDefinition        = "abstract_definition"
	ReasonAxisCountInvalid          = "axis_count_invalid"
	ReasonCategoryMix               = "category_mix"
	ReasonIncongruenceMarkerMissing = "incongruence_marker_missing"
	ReasonIncongruenceMixMissing    = "incongruence_mix_missing"
	ReasonTooManyComparisons        = "too_many_comparisons"
	ReasonComparisonWithMix         = "comparison_with_mix"
	ReasonScopeUnresolved           = "scope_unresolved"
	ReasonScopeMixed                = "scope_mixed"
	ReasonScenarioMarkerMissing     = "scenario_marker_missing"
	ReasonActionEndingMissing       = "action_ending_missing"
	ReasonDuplicateRecent           = "duplicate_recent"
)

const (
	MinTextRunes       = 18
	MaxTextRunes       = 70
	MaxTokens          = 20
	MaxComparisons     = 2
	RecentWindow       = 8
	TokenJaccardLimit  = 0.72
	BigramJaccardLimit = 0.78
)

var (
	bannedHedgeWords = []string{"보통", "가끔", "대체로", "상황에 따라", "사람마다", "케바케", "종종", "때때로"}

	interrogativeMarkers = []string{"?", "？", "무엇", "어떻게", "왜 ", "언제", "어디", "누구", "어느", "얼마나"}
	abstractMarkers      = []string{"이란", "란 무엇", "의 의미", "정의", "본질"}

	behaviorMarkers = []string{"행동", "말을 꺼", "먼저 말", "움직", "실행", "바로 ", "연락", "나선다", "찾아간다", "만든다", "적어", "메모"}
	internalMarkers = []string{"느낀다", "느낌", "기분", "마음", "속으로", "속마음", "감정", "불안", "편안", "지친다", "에너지"}
	judgmentMarkers = []string{"기준", "판단", "근거", "타당", "옳", "원칙", "논리"}

	outerMarkers = []string{"겉으로", "겉보기", "밖으로는", "보이려"}
	innerMarkers = []string{"속으로", "실제", "내심", "속마음"}

	comparisonMarkers = []string{"보다", "대신", "vs"}

	scopeMarkers = map[assessment.Context][]string{
		assessment.ContextWork:    {"업무", "회사", "회의", "직장", "팀", "프로젝트", "동료"},
		assessment.ContextPrivate: {"친구", "가족", "연인", "가까운 사람", "사적"},
		assessment.ContextDaily:   {"일상", "평소", "주말", "하루"},
	}
	unresolvedScopes = []string{"갈등 회의", "중요한 상황", "어떤 상황", "특정 상황", "갈등 상황"}

	scenarioMarkers = []string{"면 ", "때 ", "에서 ", "전에", "후에", "뒤에", "도 ", "중에", "앞두"}
)

type Options struct {
	AllowIncongruence bool
}

// Quality is the verdict of the quality gate. Valid holds only when Reasons is empty.
type Quality struct {
	Valid          bool     `json:"valid"`
	Reasons        []string `json:"reasons"`
	AmbiguityFlags []string `json:"ambiguityFlags"`
	Similarity     float64  `json:"similarity"`
}

// Validate runs every quality gate over q and collects the violated reason codes.
// recent should hold the last shown questions (at most RecentWindow are used).
func Validate(q assessment.Question, recent []assessment.Question, opts Options) Quality {
	text := strings.TrimSpace(q.Text)
	var reasons, flags []string
	add := func(r string) {
		for _, existing := range reasons {
			if existing == r {
				return
			}
		}
		reasons = append(reasons, r)
	}

	if n := utf8.RuneCountInString(text); n < MinTextRunes || n > MaxTextRunes {
		add(ReasonLengthOutOfRange)
	}
	if len(strings.Fields(text)) > MaxTokens {
		add(ReasonTooManyTokens)
	}
	if containsAny(text, bannedHedgeWords) {
		add(ReasonBannedHedgeWord)
	}
	if containsAny(text, interrogativeMarkers) {
		add(ReasonInterrogativeForm)
	}
	if containsAny(text, abstractMarkers) {
		add(ReasonAbstractDefinition)
	}
	if len(q.Targets.MBTIAxes) != 1 {
		add(ReasonAxisCountInvalid)
	}

	categories := categoryCount(text)
	hasMarker := containsAny(text, outerMarkers) || containsAny(text, innerMarkers)
	incongruence := opts.AllowIncongruence &&
		(q.MetaOrDefault().Pattern == assessment.PatternIncongruence || hasMarker)
	if incongruence {
		if categories < 2 {
			add(ReasonIncongruenceMixMissing)
		}
		if !hasMarker {
			add(ReasonIncongruenceMarkerMissing)
		}
	} else if categories >= 2 {
		add(ReasonCategoryMix)
	}

	comparisons := countMarkers(text, comparisonMarkers)
	if comparisons > MaxComparisons {
		add(ReasonTooManyComparisons)
	}
	if comparisons > 0 && categories >= 2 && !incongruence {
		add(ReasonComparisonWithMix)
	}

	if containsAny(text, unresolvedScopes) {
		add(ReasonScopeUnresolved)
		flags = append(flags, "unresolved_context")
	}
	if _, n := DetectScope(text); n > 1 {
		add(ReasonScopeMixed)
		flags = append(flags, "mixed_scope")
	}

	if !containsAny(text, scenarioMarkers) {
		add(ReasonScenarioMarkerMissing)
	}
	if !hasActionEnding(text) {
		add(ReasonActionEndingMissing)
	}

	similarity := 0.0
	for _, r := range tail(recent, RecentWindow) {
		score, dup := compare(text, r.Text)
		if r.ID != "" && r.ID == q.ID {
			score, dup = 1, true
		}
		similarity = max(similarity, score)
		if dup {
			add(ReasonDuplicateRecent)
		}
	}

	return Quality{
		Valid:          len(reasons) == 0,
		Reasons:        reasons,
		AmbiguityFlags: flags,
		Similarity:     round3(similarity),
	}
}

// Similarity returns 1 when one normalized text contains the other, otherwise
// the larger of token Jaccard and character-bigram Jaccard.
func Similarity(a, b string) float64 {
	score, _ := compare(a, b)
	return score
}

func compare(a, b string) (float64, bool) {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0, false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 1, true
	}
	tok := jaccard(tokenSet(a), tokenSet(b))
	big := jaccard(bigramSet(na), bigramSet(nb))
	return max(tok, big), tok >= TokenJaccardLimit || big >= BigramJaccardLimit
}

// DetectScope returns the situational scope named by text and how many distinct
// scopes appear. Zero matches resolve to the general scope.
func DetectScope(text string) (assessment.Context, int) {
	found := assessment.ContextDaily
	n := 0
	for _, ctx := range []assessment.Context{assessment.ContextWork, assessment.ContextPrivate, assessment.ContextDaily} {
		if containsAny(text, scopeMarkers[ctx]) {
			if n == 0 {
				found = ctx
			}
			n++
		}
	}
	return found, n
}

func categoryCount(text string) int {
	n := 0
	for _, markers := range [][]string{behaviorMarkers, internalMarkers, judgmentMarkers} {
		if containsAny(text, markers) {
			n++
		}
	}
	return n
}

func hasActionEnding(text string) bool {
	text = strings.TrimRightFunc(text, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
	if !strings.HasSuffix(text, "다") {
		return false
	}
	return strings.HasSuffix(text, "편이다") || !strings.HasSuffix(text, "이다")
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func countMarkers(text string, markers []string) int {
	n := 0
	for _, m := range markers {
		n += strings.Count(text, m)
	}
	return n
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(s) {
		if t := normalize(f); t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

func bigramSet(s string) map[string]struct{} {
	runes := []rune(s)
	out := make(map[string]struct{}, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func tail(qs []assessment.Question, n int) []assessment.Question {
	if len(qs) <= n {
		return qs
	}
	return qs[len(qs)-n:]
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
