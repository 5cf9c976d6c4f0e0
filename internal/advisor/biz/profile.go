package biz

import (
	"fmt"

	"github.com/kart-io/sentinel-advisor/internal/model"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
)

// 风险等级标签。
const (
	RiskAggressive = "aggressive-investment type"
	RiskActive     = "active-investment type"
	RiskNeutral    = "risk-neutral type"
	RiskSafety     = "safety-seeking type"
	RiskStable     = "stable type"
)

var identity5 = map[int]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}

// 各题答案到分值的映射表。
var (
	q1Scores       = map[int]int{1: 5, 2: 3, 3: 1}
	q3Scores       = map[int]int{1: 0, 2: 6, 3: 3, 4: 1}
	q3PeriodScores = map[int]int{1: 1, 2: 3, 3: 5}
	q4Scores       = map[int]int{1: 1, 2: 3, 3: 5}
	q5Scores       = map[int]int{1: 1, 2: 3, 3: 4}
	q6Scores       = map[int]int{1: 1, 2: 3, 3: 5, 4: 5}
	q9Scores       = map[int]int{1: 1, 2: 3, 3: 5, 4: 2, 5: 1}
)

// riskBands 按下限从高到低排列，下限包含在内。
var riskBands = []struct {
	min   int
	label string
}{
	{30, RiskAggressive},
	{25, RiskActive},
	{20, RiskNeutral},
	{15, RiskSafety},
}

func lookup(table map[int]int, question string, answer int) (int, error) {
	score, ok := table[answer]
	if !ok {
		return 0, errors.ErrInvalidAnswer.
			WithMessagef("invalid answer %d for question %s", answer, question).
			WithMessageKO(fmt.Sprintf("%s 문항의 응답 %d은(는) 올바르지 않습니다", question, answer))
	}
	return score, nil
}

// TotalScore 计算问卷总分，按题号顺序校验答案。
// q3 取所选项中的最高分，q8 不参与计分。
func TotalScore(q *model.Questionnaire) (int, error) {
	if q == nil {
		return 0, errors.ErrInvalidAnswer.WithMessage("questionnaire is required")
	}

	total := 0
	add := func(table map[int]int, question string, answer int) error {
		s, err := lookup(table, question, answer)
		total += s
		return err
	}

	if err := add(q1Scores, "q1", q.Q1); err != nil {
		return 0, err
	}
	if err := add(identity5, "q2", q.Q2); err != nil {
		return 0, err
	}

	if len(q.Q3) == 0 {
		return 0, errors.ErrInvalidAnswer.
			WithMessage("at least one answer is required for question q3").
			WithMessageKO("q3 문항은 하나 이상 선택해야 합니다")
	}
	q3 := 0
	for _, a := range q.Q3 {
		s, err := lookup(q3Scores, "q3", a)
		if err != nil {
			return 0, err
		}
		q3 = max(q3, s)
	}
	total += q3

	rest := []struct {
		name   string
		table  map[int]int
		answer int
	}{
		{"q3_period", q3PeriodScores, q.Q3Period},
		{"q4", q4Scores, q.Q4},
		{"q5", q5Scores, q.Q5},
		{"q6", q6Scores, q.Q6},
		{"q9", q9Scores, q.Q9},
		{"q10", identity5, q.Q10},
		{"q11", identity5, q.Q11},
	}
	for _, item := range rest {
		if err := add(item.table, item.name, item.answer); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// RiskLevelFor 将总分映射为风险等级。
func RiskLevelFor(total int) string {
	for _, band := range riskBands {
		if total >= band.min {
			return band.label
		}
	}
	return RiskStable
}

// ScoreProfile 根据问卷生成用户风险画像，投资期限直接取 q10 的答案。
func ScoreProfile(q *model.Questionnaire) (*model.UserProfile, error) {
	total, err := TotalScore(q)
	if err != nil {
		return nil, err
	}
	return &model.UserProfile{
		RiskLevel:         RiskLevelFor(total),
		InvestmentHorizon: q.Q10,
	}, nil
}
