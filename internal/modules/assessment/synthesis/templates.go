package synthesis

import "github.com/yungbote/mindtrace-backend/internal/domain/assessment"

const (
	axisTemplateWeight         = 0.8
	enneagramTemplateAxis      = 0.35
	enneagramTemplateType      = 0.35
	incongruenceTemplateWeight = 0.7
)

// template is one deterministic fallback question. Sign +1 means a yes answer
// points at the axis's first letter.
type template struct {
	Key       string
	Text      string
	Rationale string
	Axis      assessment.Axis
	Sign      float64
	Enneagram assessment.EnneagramType
	Context   assessment.Context
	Pattern   assessment.Pattern
	Mode      assessment.Mode
}

var axisTemplates = map[assessment.Axis][]template{
	assessment.AxisIE: {
		{Key: "ie_1", Text: "나는 모임이 끝나면 혼자 조용히 쉬어야 기분이 회복된다", Sign: 1, Context: assessment.ContextDaily, Pattern: assessment.PatternInternal},
		{Key: "ie_2", Text: "나는 업무 회의에서 생각을 다 정리한 뒤에 말을 꺼내는 편이다", Sign: 1, Context: assessment.ContextWork, Pattern: assessment.PatternBehavior},
		{Key: "ie_3", Text: "나는 주말에 약속이 없으면 집에서 혼자 시간을 보내는 편이다", Sign: 1, Context: assessment.ContextDaily, Pattern: assessment.PatternBehavior},
	},
	assessment.AxisSN: {
		{Key: "sn_1", Text: "나는 새 일을 배울 때 구체적인 예시부터 확인해야 이해가 된다", Sign: 1, Context: assessment.ContextDaily, Pattern: assessment.PatternInternal},
		{Key: "sn_2", Text: "나는 업무 설명을 들을 때 큰 방향보다 세부 절차를 먼저 묻는 편이다", Sign: 1, Context: assessment.ContextWork, Pattern: assessment.PatternBehavior},
		{Key: "sn_3", Text: "나는 친구와 여행을 계획할 때 분위기보다 이동 동선을 먼저 챙긴다", Sign: 1, Context: assessment.ContextPrivate, Pattern: assessment.PatternBehavior},
	},
	assessment.AxisTF: {
		{Key: "tf_1", Text: "나는 친구가 고민을 털어놓으면 위로보다 해결 방법을 먼저 말한다", Sign: 1, Context: assessment.ContextPrivate, Pattern: assessment.PatternBehavior},
		{Key: "tf_2", Text: "나는 업무에서 의견이 갈리면 관계보다 근거가 맞는지 먼저 따진다", Sign: 1, Context: assessment.ContextWork, Pattern: assessment.PatternJudgment},
		{Key: "tf_3", Text: "나는 일상에서 선택할 때 마음이 끌리는 쪽보다 따져본 쪽을 고른다", Sign: 1, Context: assessment.ContextDaily, Pattern: assessment.PatternJudgment},
	},
	assessment.AxisJP: {
		{Key: "jp_1", Text: "나는 여행을 떠나기 전에 일정표를 시간 단위로 만들어 둔다", Sign: 1, Context: assessment.ContextDaily, Pattern: assessment.PatternBehavior},
		{Key: "jp_2", Text: "나는 업무를 시작할 때 순서표를 먼저 적어 두는 편이다", Sign: 1, Context: assessment.ContextWork, Pattern: assessment.PatternBehavior},
		{Key: "jp_3", Text: "나는 주말 계획이 바뀌면 새 일정을 바로 다시 짜는 편이다", Sign: 1, Context: assessment.ContextDaily, Pattern: assessment.PatternBehavior},
	},
}

// enneagramTemplates is indexed by type order 1..9.
var enneagramTemplates = []template{
	{Key: "e1", Enneagram: "1", Axis: assessment.AxisJP, Sign: 1, Text: "나는 일을 마무리할 때 작은 실수까지 다시 고쳐야 마음이 놓인다", Context: assessment.ContextDaily, Pattern: assessment.PatternInternal},
	{Key: "e2", Enneagram: "2", Axis: assessment.AxisTF, Sign: -1, Text: "나는 가까운 사람이 부탁하면 내 일을 미뤄서라도 먼저 돕는 편이다", Context: assessment.ContextPrivate, Pattern: assessment.PatternBehavior},
	{Key: "e3", Enneagram: "3", Axis: assessment.AxisIE, Sign: -1, Text: "나는 업무 성과가 보이지 않으면 방식을 바로 바꿔 결과를 만든다", Context: assessment.ContextWork, Pattern: assessment.PatternBehavior},
	{Key: "e4", Enneagram: "4", Axis: assessment.AxisSN, Sign: -1, Text: "나는 남들과 비슷해 보이는 선택을 하면 왠지 불편한 기분이 든다", Context: assessment.ContextDaily, Pattern: assessment.PatternInternal},
	{Key: "e5", Enneagram: "5", Axis: assessment.AxisIE, Sign: 1, Text: "나는 새로운 일을 맡으면 충분히 자료를 찾아본 뒤에 움직인다", Context: assessment.ContextDaily, Pattern: assessment.PatternBehavior},
	{Key: "e6", Enneagram: "6", Axis: assessment.AxisJP, Sign: 1, Text: "나는 중요한 약속을 앞두면 생길 수 있는 문제를 미리 점검한다", Context: assessment.ContextDaily, Pattern: assessment.PatternBehavior},
	{Key: "e7", Enneagram: "7", Axis: assessment.AxisJP, Sign: -1, Text: "나는 주말에 계획이 비면 새로운 경험을 찾아 바로 나서는 편이다", Context: assessment.ContextDaily, Pattern: assessment.PatternBehavior},
	{Key: "e8", Enneagram: "8", Axis: assessment.AxisTF, Sign: 1, Text: "나는 팀에서 불공정한 일이 생기면 직접 나서서 바로잡는 편이다", Context: assessment.ContextWork, Pattern: assessment.PatternBehavior},
	{Key: "e9", Enneagram: "9", Axis: assessment.AxisIE, Sign: 1, Text: "나는 친구들 사이에 긴장이 생기면 분위기를 먼저 부드럽게 푼다", Context: assessment.ContextPrivate, Pattern: assessment.PatternBehavior},
}

var incongruenceTemplates = []template{
	{Key: "inc_tf", Axis: assessment.AxisTF, Sign: 1, Text: "나는 겉으로는 맞춰 행동해도 속으로는 내 기준으로 다시 판단한다"},
	{Key: "inc_ie", Axis: assessment.AxisIE, Sign: 1, Text: "나는 겉으로는 밝게 행동해도 속으로는 혼자 쉬고 싶은 마음이 크다"},
	{Key: "inc_jp", Axis: assessment.AxisJP, Sign: 1, Text: "나는 겉으로는 즉흥적으로 행동해도 속으로는 정해 둔 기준을 따른다"},
	{Key: "inc_sn", Axis: assessment.AxisSN, Sign: -1, Text: "나는 겉으로는 현실적으로 행동해도 속으로는 새 가능성을 먼저 떠올린다"},
}

func init() {
	for axis, pool := range axisTemplates {
		for i := range pool {
			pool[i].Axis = axis
			pool[i].Mode = assessment.ModeTieBreak
			pool[i].Rationale = string(axis) + " 축 불확실성 해소"
		}
	}
	for i := range enneagramTemplates {
		enneagramTemplates[i].Mode = assessment.ModeTieBreak
		enneagramTemplates[i].Rationale = "에니어그램 " + string(enneagramTemplates[i].Enneagram) + "번 후보 확인"
	}
	for i := range incongruenceTemplates {
		incongruenceTemplates[i].Mode = assessment.ModeValidation
		incongruenceTemplates[i].Pattern = assessment.PatternIncongruence
		incongruenceTemplates[i].Context = assessment.ContextDaily
		incongruenceTemplates[i].Rationale = "겉으로 드러나는 모습과 실제 판단의 차이 확인"
	}
}

func (t template) weights() assessment.Delta {
	switch {
	case t.Pattern == assessment.PatternIncongruence:
		return assessment.Delta{MBTI: map[assessment.Axis]float64{t.Axis: t.Sign * incongruenceTemplateWeight}}
	case t.Enneagram != "":
		return assessment.Delta{
			MBTI:      map[assessment.Axis]float64{t.Axis: t.Sign * enneagramTemplateAxis},
			Enneagram: map[assessment.EnneagramType]float64{t.Enneagram: enneagramTemplateType},
		}
	default:
		return assessment.Delta{MBTI: map[assessment.Axis]float64{t.Axis: t.Sign * axisTemplateWeight}}
	}
}

func (t template) cooldownGroup() string {
	if t.Enneagram != "" {
		return "fallback_e" + string(t.Enneagram)
	}
	if t.Pattern == assessment.PatternIncongruence {
		return "fallback_incongruence"
	}
	return "fallback_" + string(t.Axis)
}

func (t template) question(id string) assessment.Question {
	targets := assessment.Targets{MBTIAxes: []assessment.Axis{t.Axis}}
	if t.Enneagram != "" {
		targets.Enneagram = []assessment.EnneagramType{t.Enneagram}
	}
	return assessment.Question{
		ID:        id,
		Text:      t.Text,
		Rationale: t.Rationale,
		Targets:   targets,
		Effect:    assessment.ScoringEffect(t.weights()),
		Meta: &assessment.Meta{
			Context:        t.Context,
			Mode:           t.Mode,
			Pattern:        t.Pattern,
			CooldownGroup:  t.cooldownGroup(),
			AmbiguityScore: 0.2,
			QualityScore:   0.7,
		},
	}
}
