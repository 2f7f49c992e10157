//go:build !ocr

package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTesseractDisabled(t *testing.T) {
	engine, err := NewTesseractEngine(TesseractConfig{})
	assert.ErrorIs(t, err, ErrOCRNotEnabled)
	assert.Nil(t, engine)

	var e *TesseractEngine
	_, err = e.Recognize(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrOCRNotEnabled)
}
