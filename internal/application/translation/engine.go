// Package translation 分块翻译长文本，支持并行与流式两种模式
package translation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
	"z-novel-writer/pkg/tracer"
)

// Mode 翻译模式
type Mode string

const (
	ModeParallel Mode = "parallel"
	ModeStream   Mode = "stream"
)

const defaultWorkers = 6

// DefaultLanguages 可选目标语言
var DefaultLanguages = []string{"Chinese (Simp.)", "English", "Japanese", "Korean", "French", "German", "Spanish"}

// Config 引擎配置
type Config struct {
	ChunkSize       int
	Workers         int
	Provider        string
	Model           string
	DefaultLanguage string
	Languages       []string
}

// Request 一次翻译请求，Provider/Model 为空时使用引擎默认值
type Request struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	Mode           Mode   `json:"mode"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
}

// ChunkFailure 单个分块的失败信息
type ChunkFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

// Result 翻译结果。Parts 与 Sources 按分块下标对齐，失败的分块在 Parts 中为空串。
type Result struct {
	Text     string         `json:"text"`
	Chunks   int            `json:"chunks"`
	Failures []ChunkFailure `json:"failures,omitempty"`

	Parts          []string `json:"-"`
	Sources        []string `json:"-"`
	TargetLanguage string   `json:"-"`
	Provider       string   `json:"-"`
	Model          string   `json:"-"`
}

// Complete 全部分块均成功
func (r *Result) Complete() bool {
	return r != nil && len(r.Failures) == 0
}

// FailedIndices 失败分块下标，升序
func (r *Result) FailedIndices() []int {
	if r == nil {
		return nil
	}
	out := make([]int, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.ChunkIndex)
	}
	return out
}

// ParallelProgress 并行模式进度：已完成数、总数、当前结果副本（未完成位置为空串）
type ParallelProgress func(done, total int, partial []string)

// StreamProgress 流式模式进度：已完成数、总数、刚完成分块的完整译文
type StreamProgress func(done, total int, chunkText string)

// EmitFunc 接收流式片段，返回错误时停止翻译
type EmitFunc func(fragment string) error

// Engine 翻译引擎
type Engine struct {
	translator      ChunkTranslator
	splitter        *Splitter
	workers         int
	provider        string
	model           string
	defaultLanguage string
	languages       []string
}

func NewEngine(translator ChunkTranslator, cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	defaultLanguage := strings.TrimSpace(cfg.DefaultLanguage)
	if defaultLanguage == "" {
		defaultLanguage = languages[0]
	}
	return &Engine{
		translator:      translator,
		splitter:        NewSplitter(cfg.ChunkSize),
		workers:         workers,
		provider:        strings.TrimSpace(cfg.Provider),
		model:           strings.TrimSpace(cfg.Model),
		defaultLanguage: defaultLanguage,
		languages:       append([]string(nil), languages...),
	}
}

// Languages 可选目标语言
func (e *Engine) Languages() []string {
	return append([]string(nil), e.languages...)
}

// DefaultLanguage 默认目标语言
func (e *Engine) DefaultLanguage() string {
	return e.defaultLanguage
}

// Split 按引擎配置切分文本
func (e *Engine) Split(text string) []string {
	return e.splitter.Split(text)
}

// Translate 按模式分发；流式模式下 emit 接收片段，并行模式忽略 emit
func (e *Engine) Translate(ctx context.Context, req Request, emit EmitFunc) (*Result, error) {
	switch req.Mode {
	case ModeStream:
		return e.TranslateStream(ctx, req, emit, nil)
	case ModeParallel, "":
		return e.TranslateParallel(ctx, req, nil)
	default:
		return nil, apperrors.ErrInvalidParam.WithDetail("unknown translation mode: " + string(req.Mode))
	}
}

// TranslateParallel 有界并发翻译全部分块，结果按原下标写回。
// 单块失败只记录到 Failures，不影响其它分块。
func (e *Engine) TranslateParallel(ctx context.Context, req Request, progress ParallelProgress) (*Result, error) {
	res, err := e.prepare(req)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(res.Sources))
	for i := range indices {
		indices[i] = i
	}
	e.runParallel(ctx, res, indices, progress)
	return res, nil
}

// Retry 只重新翻译上次失败的分块
func (e *Engine) Retry(ctx context.Context, prev *Result, progress ParallelProgress) (*Result, error) {
	if prev == nil {
		return nil, apperrors.ErrInvalidParam.WithDetail("previous result is required")
	}
	res := &Result{
		Chunks:         prev.Chunks,
		Parts:          append([]string(nil), prev.Parts...),
		Sources:        prev.Sources,
		TargetLanguage: prev.TargetLanguage,
		Provider:       prev.Provider,
		Model:          prev.Model,
	}
	failed := prev.FailedIndices()
	if len(failed) == 0 {
		res.Text = strings.Join(res.Parts, "")
		return res, nil
	}
	e.runParallel(ctx, res, failed, progress)
	return res, nil
}

func (e *Engine) runParallel(ctx context.Context, res *Result, indices []int, progress ParallelProgress) {
	ctx, span := tracer.Start(ctx, "translation.Engine.Parallel",
		trace.WithAttributes(
			attribute.Int("translation.chunks", len(indices)),
			attribute.String("translation.language", res.TargetLanguage),
		))
	defer span.End()

	var (
		mu       sync.Mutex
		done     int
		failures []ChunkFailure
	)
	total := len(indices)

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for _, idx := range indices {
		i := idx
		g.Go(func() error {
			out, err := e.translateChunk(ctx, res, i, string(ModeParallel))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error(ctx, "failed to translate chunk", err, "chunk_index", i)
				failures = append(failures, ChunkFailure{ChunkIndex: i, Message: err.Error(), Err: err})
				res.Parts[i] = ""
			} else {
				res.Parts[i] = out
			}
			done++
			if progress != nil {
				progress(done, total, append([]string(nil), res.Parts...))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(a, b int) bool { return failures[a].ChunkIndex < failures[b].ChunkIndex })
	res.Failures = failures
	res.Text = strings.Join(res.Parts, "")
	if len(failures) > 0 {
		span.SetStatus(codes.Error, "partial translation failure")
		span.SetAttributes(attribute.Int("translation.failed_chunks", len(failures)))
	}
}

// TranslateStream 按顺序逐块流式翻译，片段到达即交给 emit
func (e *Engine) TranslateStream(ctx context.Context, req Request, emit EmitFunc, progress StreamProgress) (*Result, error) {
	res, err := e.prepare(req)
	if err != nil {
		return nil, err
	}
	if emit == nil {
		emit = func(string) error { return nil }
	}

	ctx, span := tracer.Start(ctx, "translation.Engine.Stream",
		trace.WithAttributes(
			attribute.Int("translation.chunks", res.Chunks),
			attribute.String("translation.language", res.TargetLanguage),
		))
	defer span.End()

	for i, chunk := range res.Sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		out, err := e.translator.StreamChunk(ctx, e.chunkRequest(res, chunk), emit)
		res.Parts[i] = out
		res.Text = strings.Join(res.Parts[:i+1], "")
		if err != nil {
			metrics.TranslationChunksTotal.WithLabelValues(string(ModeStream), "error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			res.Failures = []ChunkFailure{{ChunkIndex: i, Message: err.Error(), Err: err}}
			return res, apperrors.Wrap(err, apperrors.CodeTranslationFailed, "failed to translate chunk")
		}
		metrics.TranslationChunksTotal.WithLabelValues(string(ModeStream), "success").Inc()
		logger.Debug(ctx, "chunk translated", "chunk_index", i, "duration_ms", time.Since(start).Milliseconds())
		if progress != nil {
			progress(i+1, res.Chunks, out)
		}
	}
	return res, nil
}

func (e *Engine) prepare(req Request) (*Result, error) {
	if e.translator == nil {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("translator not configured")
	}
	lang := strings.TrimSpace(req.TargetLanguage)
	if lang == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("target language is required")
	}
	sources := e.splitter.Split(req.Text)
	res := &Result{
		Chunks:         len(sources),
		Parts:          make([]string, len(sources)),
		Sources:        sources,
		TargetLanguage: lang,
		Provider:       e.provider,
		Model:          e.model,
	}
	if p := strings.TrimSpace(req.Provider); p != "" {
		res.Provider = p
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		res.Model = m
	}
	return res, nil
}

func (e *Engine) translateChunk(ctx context.Context, res *Result, i int, mode string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()
	out, err := e.translator.TranslateChunk(ctx, e.chunkRequest(res, res.Sources[i]))
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.TranslationChunksTotal.WithLabelValues(mode, status).Inc()
	logger.Debug(ctx, "chunk translated", "chunk_index", i, "status", status, "duration_ms", time.Since(start).Milliseconds())
	return out, err
}

func (e *Engine) chunkRequest(res *Result, chunk string) ChunkRequest {
	return ChunkRequest{
		Text:           chunk,
		TargetLanguage: res.TargetLanguage,
		Provider:       res.Provider,
		Model:          res.Model,
	}
}
