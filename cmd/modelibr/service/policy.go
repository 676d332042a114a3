package service

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/models"
)

// UploadPolicy decides whether an upload is accepted before any bytes are
// hashed or stored. The policy is a CEL expression over the upload's
// name, extension, category and size_bytes, compiled once at startup.
type UploadPolicy struct {
	program  cel.Program
	maxBytes int64
}

// NewUploadPolicy compiles the policy expression
func NewUploadPolicy(expression string, maxBytes int64) (*UploadPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("extension", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("size_bytes", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("upload policy compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload policy program: %w", err)
	}

	return &UploadPolicy{program: prg, maxBytes: maxBytes}, nil
}

// Check validates an upload against the size cap and the policy expression.
// Returns a validation error when the upload is rejected.
func (p *UploadPolicy) Check(name string, category models.FileCategory, sizeBytes int64) error {
	if name == "" {
		return apperrors.New(apperrors.KindValidation, "file name is required")
	}
	if sizeBytes <= 0 {
		return apperrors.New(apperrors.KindValidation, "file is empty")
	}
	if p.maxBytes > 0 && sizeBytes > p.maxBytes {
		return apperrors.Newf(apperrors.KindValidation,
			"file exceeds maximum upload size of %d bytes", p.maxBytes)
	}

	out, _, err := p.program.Eval(map[string]interface{}{
		"name":       name,
		"extension":  models.ExtensionOf(name),
		"category":   string(category),
		"size_bytes": sizeBytes,
	})
	if err != nil {
		return fmt.Errorf("upload policy evaluation error: %w", err)
	}

	accepted, ok := out.Value().(bool)
	if !ok {
		return fmt.Errorf("upload policy did not return boolean, got %T", out.Value())
	}
	if !accepted {
		return apperrors.Newf(apperrors.KindValidation,
			"upload rejected by policy: %s (category %s)", name, category)
	}

	return nil
}
