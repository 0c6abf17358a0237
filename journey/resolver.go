package journey

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/callflow/config"
)

// ErrNoDocument 来电方没有档案文档
var ErrNoDocument = errors.New("journey: no customer document")

// 档案文档中的章节标题
const (
	HeadingSummary = "## Account Aggregator Summary"
	HeadingProfile = "## Customer Profile"
	HeadingAdvice  = "## Financial Advice"
)

// Resolver 判定来电方所处阶段
type Resolver interface {
	Stage(ctx context.Context, callerKey string) (Stage, error)
}

// DocumentStore 读取来电方档案文档（markdown）
type DocumentStore interface {
	Document(ctx context.Context, callerKey string) (string, error)
}

// DocumentWriter 向档案文档追加章节
type DocumentWriter interface {
	AppendSection(ctx context.Context, callerKey, heading, body string) error
}

// DirStore 从目录读写 {caller}.md
type DirStore struct {
	dir string
}

// NewDirStore 创建目录档案存储
func NewDirStore(dir string) *DirStore { return &DirStore{dir: dir} }

// Document 实现 DocumentStore，文件不存在返回 ErrNoDocument
func (s *DirStore) Document(_ context.Context, callerKey string) (string, error) {
	if !s.validKey(callerKey) {
		return "", ErrNoDocument
	}
	data, err := os.ReadFile(s.path(callerKey))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoDocument
	}
	if err != nil {
		return "", fmt.Errorf("read customer document: %w", err)
	}
	return string(data), nil
}

// AppendSection 实现 DocumentWriter，文档不存在时创建
func (s *DirStore) AppendSection(_ context.Context, callerKey, heading, body string) error {
	if !s.validKey(callerKey) {
		return fmt.Errorf("journey: invalid caller key %q", callerKey)
	}
	f, err := os.OpenFile(s.path(callerKey), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open customer document: %w", err)
	}
	if _, err := fmt.Fprintf(f, "\n%s\n%s\n", heading, strings.TrimSpace(body)); err != nil {
		_ = f.Close()
		return fmt.Errorf("append customer document: %w", err)
	}
	return f.Close()
}

func (s *DirStore) validKey(callerKey string) bool {
	return s.dir != "" && callerKey != "" && !strings.ContainsAny(callerKey, `/\`) && !strings.Contains(callerKey, "..")
}

func (s *DirStore) path(callerKey string) string {
	return filepath.Join(s.dir, callerKey+".md")
}

// DocumentResolver 根据档案文档内容判定阶段
type DocumentResolver struct {
	store DocumentStore
}

// NewDocumentResolver 创建基于文档的阶段判定
func NewDocumentResolver(store DocumentStore) *DocumentResolver {
	return &DocumentResolver{store: store}
}

// Stage 实现 Resolver：
// 无文档为 data_pending；建议章节有内容为 advice_exists；
// 没有客户档案章节为 profile_pending；否则 advice_pending。
func (r *DocumentResolver) Stage(ctx context.Context, callerKey string) (Stage, error) {
	doc, err := r.store.Document(ctx, callerKey)
	if errors.Is(err, ErrNoDocument) {
		return StageDataPending, nil
	}
	if err != nil {
		return "", err
	}
	return StageOf(doc), nil
}

// StageOf 由文档内容推断阶段
func StageOf(doc string) Stage {
	if strings.TrimSpace(Section(doc, HeadingAdvice)) != "" {
		return StageAdviceExists
	}
	if !strings.Contains(doc, HeadingProfile) {
		return StageProfilePending
	}
	return StageAdvicePending
}

// Section 返回标题之后到下一个同级标题之前的内容，标题不存在时返回空串
func Section(doc, heading string) string {
	i := strings.Index(doc, heading)
	if i < 0 {
		return ""
	}
	rest := doc[i+len(heading):]
	if j := strings.Index(rest, "\n## "); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// StaticResolver 按号码覆盖阶段，未覆盖时交给 fallback 或返回默认阶段
type StaticResolver struct {
	stages   map[string]Stage
	def      Stage
	fallback Resolver
}

// NewStaticResolver 由配置创建，fallback 可为空
func NewStaticResolver(cfg config.JourneyConfig, fallback Resolver) (*StaticResolver, error) {
	def, err := ParseStage(cfg.DefaultStage)
	if err != nil {
		return nil, fmt.Errorf("default stage: %w", err)
	}
	stages := make(map[string]Stage, len(cfg.Stages))
	for caller, name := range cfg.Stages {
		st, err := ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("stage for %s: %w", caller, err)
		}
		stages[caller] = st
	}
	return &StaticResolver{stages: stages, def: def, fallback: fallback}, nil
}

// Stage 实现 Resolver
func (r *StaticResolver) Stage(ctx context.Context, callerKey string) (Stage, error) {
	if st, ok := r.stages[callerKey]; ok {
		return st, nil
	}
	if r.fallback != nil {
		return r.fallback.Stage(ctx, callerKey)
	}
	return r.def, nil
}
