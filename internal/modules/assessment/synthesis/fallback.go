package synthesis

import (
	"fmt"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
)

// ShouldUseIncongruence reports whether an outer-versus-inner probe is allowed:
// any conflict is flagged, or TF evidence points both ways at least twice.
func ShouldUseIncongruence(s *assessment.Session) bool {
	if len(s.Distribution.Conflicts) > 0 {
		return true
	}
	tf := s.Distribution.AxisEvidence[assessment.AxisTF]
	return tf.Positive >= 2 && tf.Negative >= 2
}

// RecentQuestions returns the tail of the session history used by the duplicate gate.
func RecentQuestions(s *assessment.Session) []assessment.Question {
	return tail(s.History, RecentWindow)
}

// Fallback builds the next question deterministically from the template pools.
// The same session state always yields the same question.
func Fallback(s *assessment.Session, allowIncongruence bool) assessment.Question {
	n := s.AnswerCount()
	recent := RecentQuestions(s)
	opts := Options{AllowIncongruence: allowIncongruence}

	ordered := fallbackOrder(s, allowIncongruence)
	for _, t := range ordered {
		q := t.question(fallbackID(n, t.Key))
		if Validate(q, recent, opts).Valid {
			return q
		}
	}
	return ordered[0].question(fallbackID(n, ordered[0].Key))
}

func fallbackID(answerCount int, key string) string {
	return fmt.Sprintf("adaptive_fb_%d_%s", answerCount, key)
}

// fallbackOrder lists every template in the order Fallback tries them: the
// primary pool rotated by the seed, then the remaining pools as a wider net.
func fallbackOrder(s *assessment.Session, allowIncongruence bool) []template {
	d := s.Distribution
	n := s.AnswerCount()

	conflicted := assessment.Axis("")
	for _, a := range assessment.Axes {
		if distribution.HasAxisFlip(d, a) {
			conflicted = a
			break
		}
	}

	var primary []template
	switch {
	case allowIncongruence && (conflicted != "" || len(d.Conflicts) > 0):
		focus := conflicted
		if focus == "" {
			focus = assessment.AxisTF
		}
		primary = incongruenceFirst(focus)
	case conflicted != "":
		primary = rotate(axisTemplates[conflicted], n)
	case n%2 == 0:
		primary = rotate(axisTemplates[distribution.MostUncertainAxis(d)], n)
	default:
		top := distribution.TopEnneagram(d.EnneagramProbs, 1)
		start := 4
		if len(top) > 0 {
			if t := assessment.EnneagramType(top[0].Type); t.Valid() {
				start = int(t[0] - '1')
			}
		}
		primary = rotate(enneagramTemplates, start)
	}

	out := make([]template, 0, 32)
	seen := map[string]struct{}{}
	push := func(ts []template) {
		for _, t := range ts {
			if _, ok := seen[t.Key]; ok {
				continue
			}
			seen[t.Key] = struct{}{}
			out = append(out, t)
		}
	}
	push(primary)
	for _, a := range assessment.Axes {
		push(rotate(axisTemplates[a], n))
	}
	push(rotate(enneagramTemplates, n))
	if allowIncongruence {
		push(incongruenceTemplates)
	}
	return out
}

func incongruenceFirst(axis assessment.Axis) []template {
	out := make([]template, 0, len(incongruenceTemplates))
	for _, t := range incongruenceTemplates {
		if t.Axis == axis {
			out = append(out, t)
		}
	}
	for _, t := range incongruenceTemplates {
		if t.Axis != axis {
			out = append(out, t)
		}
	}
	return out
}

func rotate(pool []template, seed int) []template {
	if len(pool) == 0 {
		return nil
	}
	start := ((seed % len(pool)) + len(pool)) % len(pool)
	out := make([]template, 0, len(pool))
	out = append(out, pool[start:]...)
	out = append(out, pool[:start]...)
	return out
}
