package journey

import "fmt"

// Stage 用户旅程阶段
type Stage string

const (
	// StageDataPending 尚未授权共享账户数据
	StageDataPending Stage = "data_pending"
	// StageProfilePending 尚未完成问卷通话
	StageProfilePending Stage = "profile_pending"
	// StageAdvicePending 顾问尚未给出建议
	StageAdvicePending Stage = "advice_pending"
	// StageAdviceExists 建议已就绪，可答疑
	StageAdviceExists Stage = "advice_exists"
)

// ParseStage 解析阶段名称
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageDataPending, StageProfilePending, StageAdvicePending, StageAdviceExists:
		return st, nil
	}
	return "", fmt.Errorf("journey: unknown stage %q", s)
}

// 各阶段的开场提示
const (
	PromptOnboardingPending = "Hello! Welcome. Here you receive financial advice from a registered investment advisor. " +
		"To get started, please first share your account data through an RBI registered account aggregator. " +
		"After that, you can call us again. Thank you!"

	PromptQuestionnaireAgenda = "Welcome! Thank you for sharing your account aggregator data. " +
		"This call helps us understand your financial goals and circumstances so that our advice is truly personalized. " +
		"Today, I'll ask a few questions to tailor our guidance to your situation. Should we start?"

	PromptAdvicePending = "Sorry for the inconvenience. At the moment, our financial advisor has no advice ready for you. " +
		"Please call back after some time. Thank you, and have a good day."

	PromptAdviceAgenda = "Thank you for your patience. Our registered financial advisor has reviewed your account summary " +
		"and your answers. Your advice is ready now. Would you like a brief overview first, " +
		"or do you already have some questions in mind?"
)
