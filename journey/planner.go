package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/call"
	"github.com/BaSui01/callflow/conversation"
)

// 各阶段挂断前的等待
const (
	onboardingHangup = time.Second
	defaultHangup    = 5 * time.Second
)

// PipelineFactory 为对话处理器创建语音管线
type PipelineFactory func(h conversation.Handler) call.Pipeline

// PlannerConfig 规划器依赖
type PlannerConfig struct {
	Resolver  Resolver
	Documents DocumentStore
	// Writer 问卷完成后写入客户档案，可为空
	Writer        DocumentWriter
	Questionnaire []conversation.Question
	Conversation  conversation.Options
	NewPipeline   PipelineFactory
	Language      string
}

// Planner 实现 call.Planner
type Planner struct {
	cfg    PlannerConfig
	logger *zap.Logger
}

// NewPlanner 创建通话规划器
func NewPlanner(cfg PlannerConfig, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{cfg: cfg, logger: logger.With(zap.String("component", "journey"))}
}

// Plan 实现 call.Planner
func (p *Planner) Plan(ctx context.Context, callerKey string) (call.Plan, error) {
	stage, err := p.cfg.Resolver.Stage(ctx, callerKey)
	if err != nil {
		return call.Plan{}, fmt.Errorf("resolve stage: %w", err)
	}
	p.logger.Info("caller journey stage",
		zap.String("caller", callerKey),
		zap.String("stage", string(stage)),
	)

	plan := call.Plan{Stage: string(stage), Language: p.cfg.Language, HangupDelay: defaultHangup}
	switch stage {
	case StageDataPending:
		plan.Greeting = PromptOnboardingPending
		plan.HangupDelay = onboardingHangup
	case StageAdvicePending:
		plan.Greeting = PromptAdvicePending
	case StageProfilePending:
		plan.Greeting = PromptQuestionnaireAgenda
		doc, err := p.document(ctx, callerKey)
		if err != nil {
			return call.Plan{}, err
		}
		h := conversation.NewQuestionnaireHandler(p.cfg.Questionnaire, Section(doc, HeadingSummary), p.cfg.Conversation)
		p.converse(&plan, h)
		if p.cfg.Writer != nil {
			plan.OnComplete = func(ctx context.Context) error {
				p.logger.Info("saving customer profile", zap.String("caller", callerKey))
				return p.cfg.Writer.AppendSection(ctx, callerKey, HeadingProfile, h.Profile())
			}
		}
	case StageAdviceExists:
		plan.Greeting = PromptAdviceAgenda
		doc, err := p.document(ctx, callerKey)
		if err != nil {
			return call.Plan{}, err
		}
		p.converse(&plan, conversation.NewAdviceHandler(doc, p.cfg.Conversation))
	default:
		return call.Plan{}, fmt.Errorf("journey: unhandled stage %q", stage)
	}
	return plan, nil
}

// converse 开场白计入历史，并挂上语音管线
func (p *Planner) converse(plan *call.Plan, h conversation.Handler) {
	h.AddAIMessage(plan.Greeting)
	plan.Converse = true
	plan.Handler = h
	plan.Pipeline = p.cfg.NewPipeline(h)
}

func (p *Planner) document(ctx context.Context, callerKey string) (string, error) {
	if p.cfg.Documents == nil {
		return "", nil
	}
	doc, err := p.cfg.Documents.Document(ctx, callerKey)
	if errors.Is(err, ErrNoDocument) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load customer document: %w", err)
	}
	return doc, nil
}
