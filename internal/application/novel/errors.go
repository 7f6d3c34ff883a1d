package novel

import (
	"fmt"
	"strings"

	apperrors "z-novel-writer/pkg/errors"
)

// GenerationSchemaError 模型输出缺字段或结构不合法
type GenerationSchemaError struct {
	Stage  string
	Issues []string
}

func (e *GenerationSchemaError) Error() string {
	if len(e.Issues) == 0 {
		return e.Stage + ": output validation failed"
	}
	return e.Stage + ": output validation failed: " + strings.Join(e.Issues, "; ")
}

func schemaError(stage string, issues ...string) error {
	cause := &GenerationSchemaError{Stage: stage, Issues: issues}
	return apperrors.ErrGenerationSchema.WithDetail(cause.Error()).WithError(cause)
}

func llmCallError(stage string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeLLMCallFailed, stage+": LLM call failed")
}

func preconditionError(missing []string) error {
	return apperrors.ErrPrecondition.WithDetail("missing: " + strings.Join(missing, ", "))
}

func indexError(format string, args ...any) error {
	return apperrors.ErrIndexOutOfRange.WithDetail(fmt.Sprintf(format, args...))
}

func invalidParam(format string, args ...any) error {
	return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf(format, args...))
}

func persistenceError(err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodePersistence, "failed to save novel")
}
