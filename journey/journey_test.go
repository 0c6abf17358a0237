package journey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/callflow/call"
	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/conversation"
)

const profileDoc = `# Client 9876543210

## Account Aggregator Summary
Salary of 1 lakh credited monthly.

## Customer Profile
| question | answer |
| age | 34 |

## Financial Advice
`

func TestParseStage(t *testing.T) {
	for _, s := range []string{"data_pending", "profile_pending", "advice_pending", "advice_exists"} {
		st, err := ParseStage(s)
		require.NoError(t, err)
		assert.Equal(t, Stage(s), st)
	}
	_, err := ParseStage("onboarded")
	assert.Error(t, err)
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Stage
	}{
		{"summary only", "## Account Aggregator Summary\nbalances", StageProfilePending},
		{"profile without advice", profileDoc, StageAdvicePending},
		{"advice written", profileDoc + "Start a monthly SIP.\n", StageAdviceExists},
		{"advice heading followed by next section", "## Customer Profile\nx\n## Financial Advice\n\n## Notes\nlater", StageAdvicePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StageOf(tt.doc))
		})
	}
}

func TestSection(t *testing.T) {
	assert.Equal(t, "Salary of 1 lakh credited monthly.", Section(profileDoc, HeadingSummary))
	assert.Equal(t, "", Section(profileDoc, HeadingAdvice))
	assert.Equal(t, "", Section("no headings", HeadingProfile))
}

func writeDoc(t *testing.T, dir, caller, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, caller+".md"), []byte(content), 0o600))
}

func TestDirStoreAndDocumentResolver(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "111", profileDoc)
	store := NewDirStore(dir)
	r := NewDocumentResolver(store)
	ctx := context.Background()

	st, err := r.Stage(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, StageAdvicePending, st)

	st, err = r.Stage(ctx, "222")
	require.NoError(t, err)
	assert.Equal(t, StageDataPending, st)

	_, err = store.Document(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = NewDirStore("").Document(ctx, "111")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestStaticResolver(t *testing.T) {
	cfg := config.DefaultJourneyConfig()
	cfg.Stages = map[string]string{"111": "advice_exists"}

	r, err := NewStaticResolver(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()

	st, _ := r.Stage(ctx, "111")
	assert.Equal(t, StageAdviceExists, st)
	st, _ = r.Stage(ctx, "999")
	assert.Equal(t, StageProfilePending, st)

	dir := t.TempDir()
	r, err = NewStaticResolver(cfg, NewDocumentResolver(NewDirStore(dir)))
	require.NoError(t, err)
	st, _ = r.Stage(ctx, "999")
	assert.Equal(t, StageDataPending, st)

	cfg.Stages["222"] = "bogus"
	_, err = NewStaticResolver(cfg, nil)
	assert.Error(t, err)

	cfg = config.DefaultJourneyConfig()
	cfg.DefaultStage = ""
	_, err = NewStaticResolver(cfg, nil)
	assert.Error(t, err)
}

type stageFunc func(ctx context.Context, caller string) (Stage, error)

func (f stageFunc) Stage(ctx context.Context, caller string) (Stage, error) { return f(ctx, caller) }

type docs map[string]string

func (d docs) Document(_ context.Context, caller string) (string, error) {
	if doc, ok := d[caller]; ok {
		return doc, nil
	}
	return "", ErrNoDocument
}

type recordingPipeline struct{ handler conversation.Handler }

func (p *recordingPipeline) Respond(context.Context, []byte) ([]byte, error) { return nil, nil }

func newPlanner(stage Stage, d DocumentStore, model conversation.ChatModel) *Planner {
	return NewPlanner(PlannerConfig{
		Resolver:      stageFunc(func(context.Context, string) (Stage, error) { return stage, nil }),
		Documents:     d,
		Questionnaire: []conversation.Question{{ID: "age", Text: "How old are you?"}},
		Conversation:  conversation.Options{Model: model},
		NewPipeline: func(h conversation.Handler) call.Pipeline {
			return &recordingPipeline{handler: h}
		},
		Language: "hi-IN",
	}, nil)
}

func TestPlanner_TerminalStages(t *testing.T) {
	tests := []struct {
		stage    Stage
		greeting string
		hangup   string
	}{
		{StageDataPending, PromptOnboardingPending, "1s"},
		{StageAdvicePending, PromptAdvicePending, "5s"},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			plan, err := newPlanner(tt.stage, nil, nil).Plan(context.Background(), "111")
			require.NoError(t, err)
			assert.Equal(t, string(tt.stage), plan.Stage)
			assert.Equal(t, tt.greeting, plan.Greeting)
			assert.Equal(t, "hi-IN", plan.Language)
			assert.False(t, plan.Converse)
			assert.Nil(t, plan.Pipeline)
			assert.Equal(t, tt.hangup, plan.HangupDelay.String())
		})
	}
}

func TestPlanner_Questionnaire(t *testing.T) {
	var seen []conversation.Message
	model := conversation.ModelFunc(func(_ context.Context, req conversation.ChatRequest) (string, error) {
		seen = req.Messages
		return `{"ai_response":"How old are you?","age":""}`, nil
	})
	plan, err := newPlanner(StageProfilePending, docs{"111": profileDoc}, model).Plan(context.Background(), "111")
	require.NoError(t, err)

	assert.True(t, plan.Converse)
	assert.Equal(t, PromptQuestionnaireAgenda, plan.Greeting)
	h, ok := plan.Handler.(*conversation.QuestionnaireHandler)
	require.True(t, ok)
	assert.Same(t, h, plan.Pipeline.(*recordingPipeline).handler)

	_, err = h.GenerateResponse(context.Background())
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Contains(t, seen[0].Content, "Salary of 1 lakh credited monthly.")
	assert.Equal(t, PromptQuestionnaireAgenda, seen[1].Content)
}

func TestPlanner_QuestionnaireSavesProfile(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "111.md"), []byte("# Client\n\n## Account Aggregator Summary\nSalary.\n"), 0o644))

	model := conversation.ModelFunc(func(context.Context, conversation.ChatRequest) (string, error) {
		return `{"ai_response":"Thanks","age":"34"}`, nil
	})
	p := NewPlanner(PlannerConfig{
		Resolver:      NewDocumentResolver(store),
		Documents:     store,
		Writer:        store,
		Questionnaire: []conversation.Question{{ID: "age", Text: "How old are you?"}},
		Conversation:  conversation.Options{Model: model},
		NewPipeline:   func(h conversation.Handler) call.Pipeline { return &recordingPipeline{handler: h} },
	}, nil)

	ctx := context.Background()
	plan, err := p.Plan(ctx, "111")
	require.NoError(t, err)
	require.NotNil(t, plan.OnComplete)

	h := plan.Handler.(*conversation.QuestionnaireHandler)
	h.AddHumanMessage("thirty four")
	_, err = h.GenerateResponse(ctx)
	require.NoError(t, err)
	require.True(t, h.IsConversationEnded())
	require.NoError(t, plan.OnComplete(ctx))

	doc, err := store.Document(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, "- **How old are you?** 34", Section(doc, HeadingProfile))

	stage, err := NewDocumentResolver(store).Stage(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, StageAdvicePending, stage)
}

func TestDirStore_AppendRejectsBadKey(t *testing.T) {
	assert.Error(t, NewDirStore(t.TempDir()).AppendSection(context.Background(), "../x", HeadingProfile, "x"))
}

func TestPlanner_AdviceWithoutDocument(t *testing.T) {
	plan, err := newPlanner(StageAdviceExists, docs{}, nil).Plan(context.Background(), "111")
	require.NoError(t, err)
	assert.True(t, plan.Converse)
	_, ok := plan.Handler.(*conversation.AdviceHandler)
	assert.True(t, ok)
}

func TestPlanner_ResolverError(t *testing.T) {
	boom := errors.New("db down")
	p := NewPlanner(PlannerConfig{
		Resolver: stageFunc(func(context.Context, string) (Stage, error) { return "", boom }),
	}, nil)
	_, err := p.Plan(context.Background(), "111")
	assert.ErrorIs(t, err, boom)
}

func TestPlanner_UnknownStage(t *testing.T) {
	_, err := newPlanner(Stage("limbo"), nil, nil).Plan(context.Background(), "111")
	assert.Error(t, err)
}
