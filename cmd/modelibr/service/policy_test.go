package service

import (
	"testing"

	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/config"
	"github.com/modelibr/modelibr/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadPolicy_DefaultAcceptsKnownCategories(t *testing.T) {
	policy, err := NewUploadPolicy(config.DefaultUploadPolicy, 0)
	require.NoError(t, err)

	assert.NoError(t, policy.Check("teapot.obj", models.CategoryModel, 1024))
	assert.NoError(t, policy.Check("brick.png", models.CategoryTexture, 1024))
	assert.NoError(t, policy.Check("steps.wav", models.CategorySound, 1024))
}

func TestUploadPolicy_RejectsEmptyFile(t *testing.T) {
	policy, err := NewUploadPolicy(config.DefaultUploadPolicy, 0)
	require.NoError(t, err)

	err = policy.Check("teapot.obj", models.CategoryModel, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUploadPolicy_RejectsOversizedFile(t *testing.T) {
	policy, err := NewUploadPolicy(config.DefaultUploadPolicy, 100)
	require.NoError(t, err)

	err = policy.Check("teapot.obj", models.CategoryModel, 101)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	assert.NoError(t, policy.Check("teapot.obj", models.CategoryModel, 100))
}

func TestUploadPolicy_CustomExpressionOverExtension(t *testing.T) {
	policy, err := NewUploadPolicy(`extension in ["obj", "fbx"] && size_bytes > 0`, 0)
	require.NoError(t, err)

	assert.NoError(t, policy.Check("Teapot.OBJ", models.CategoryModel, 10))

	err = policy.Check("notes.txt", models.CategoryModel, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUploadPolicy_RejectsMissingName(t *testing.T) {
	policy, err := NewUploadPolicy(config.DefaultUploadPolicy, 0)
	require.NoError(t, err)

	err = policy.Check("", models.CategoryModel, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestNewUploadPolicy_InvalidExpression(t *testing.T) {
	_, err := NewUploadPolicy(`category in [`, 0)
	require.Error(t, err)
}

func TestNewUploadPolicy_NonBooleanExpression(t *testing.T) {
	policy, err := NewUploadPolicy(`size_bytes + 1`, 0)
	require.NoError(t, err)

	err = policy.Check("teapot.obj", models.CategoryModel, 10)
	require.Error(t, err)
	assert.False(t, apperrors.IsValidation(err))
}
