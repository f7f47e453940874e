package dErrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	err := New(CodeNoCapacity, "no free firefighter id for PRD")
	assert.True(t, HasCode(err, CodeNoCapacity))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeNoCapacity))
	assert.False(t, HasCode(nil, CodeNoCapacity))
}

func TestWrap_PreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeProvisioningFailure, "activate FF_SEC_01 on PRD")

	require.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeProvisioningFailure))
	assert.Contains(t, err.Error(), "connection refused")

	// A further fmt wrap must not lose the code.
	outer := fmt.Errorf("scheduler tick: %w", err)
	assert.True(t, HasCode(outer, CodeProvisioningFailure))
}

func TestMessageOf_HidesInternalDetail(t *testing.T) {
	assert.Equal(t, "", MessageOf(New(CodeInternal, "db exploded")))
	assert.Equal(t, "window end must be after start",
		MessageOf(New(CodeValidation, "window end must be after start")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:          http.StatusBadRequest,
		CodeBadRequest:          http.StatusBadRequest,
		CodeNotFound:            http.StatusNotFound,
		CodeInvalidState:        http.StatusConflict,
		CodeNoCapacity:          http.StatusConflict,
		CodeUnauthorized:        http.StatusForbidden,
		CodeProvisioningFailure: http.StatusBadGateway,
		CodeDeactivationFailure: http.StatusBadGateway,
		CodeTimeout:             http.StatusGatewayTimeout,
		CodeInternal:            http.StatusInternalServerError,
		Code("unknown"):         http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
