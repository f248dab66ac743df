package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanErrorFormat(t *testing.T) {
	err := NewScanErrorWithTarget(CodeTimeout, "scan process exceeded time budget", "10.0.0.0/24")
	assert.Equal(t, "[TIMEOUT] scan process exceeded time budget (target: 10.0.0.0/24)", err.Error())

	bare := NewScanError(CodeValidation, "bad target")
	assert.Equal(t, "[VALIDATION] bad target", bare.Error())
}

func TestScanErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapScanErrorWithTarget(CodeProcessSpawn, "failed to start scan process", "10.0.0.1", cause)

	assert.ErrorIs(t, err, cause)

	var scanErr *ScanError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &scanErr)
	assert.Equal(t, CodeProcessSpawn, scanErr.Code)
}

func TestScanErrorWithUnitAndContext(t *testing.T) {
	err := ErrUnitTimeout("10.0.0.0/24").WithUnit("u42").WithContext("pid", 1234)
	assert.Equal(t, "u42", err.UnitID)
	assert.Equal(t, 1234, err.Context["pid"])
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"scan error", NewScanError(CodeParse, "x"), CodeParse},
		{"config error", NewConfigError(CodeConfiguration, "x"), CodeConfiguration},
		{"wrapped scan error", fmt.Errorf("outer: %w", NewScanError(CodeTimeout, "x")), CodeTimeout},
		{"plain error", errors.New("x"), CodeUnknown},
		{"nil", nil, CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
			assert.True(t, IsCode(tt.err, tt.want))
		})
	}
}

func TestIsPerUnit(t *testing.T) {
	assert.True(t, IsPerUnit(ErrSpawnFailed("10.0.0.1", errors.New("enoent"))))
	assert.True(t, IsPerUnit(ErrUnitTimeout("10.0.0.1")))
	assert.True(t, IsPerUnit(NewScanError(CodeNonZeroExit, "x")))
	assert.True(t, IsPerUnit(ErrEmptyArtifact("/tmp/out.xml")))

	assert.False(t, IsPerUnit(ErrInvalidTarget("bogus")))
	assert.False(t, IsPerUnit(NewScanError(CodeCanceled, "x")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrInvalidTarget("bogus")))
	assert.True(t, IsFatal(ErrEmptyTarget()))
	assert.True(t, IsFatal(NewConfigError(CodeConfiguration, "x")))

	assert.False(t, IsFatal(ErrUnitTimeout("10.0.0.1")))
	assert.False(t, IsFatal(errors.New("x")))
}

func TestConfigErrorFormat(t *testing.T) {
	err := NewConfigFieldError(CodeConfiguration, "value out of range", "max_workers", 500)
	assert.Equal(t, "[CONFIGURATION] value out of range (field: max_workers)", err.Error())
	assert.Equal(t, 500, err.Value)
}

func TestErrEmptyArtifactCarriesPath(t *testing.T) {
	err := ErrEmptyArtifact("/tmp/unit-1.xml")
	assert.Equal(t, CodeParse, err.Code)
	assert.Equal(t, "/tmp/unit-1.xml", err.Context["path"])
}
