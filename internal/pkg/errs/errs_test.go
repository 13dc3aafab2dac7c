package errs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorUsesTemplate(t *testing.T) {
	err := NewError(ErrFileNotFound)

	require.Equal(t, ErrFileNotFound, err.Code)
	require.Equal(t, http.StatusNotFound, err.Status)
	require.Equal(t, "File not found.", err.Message)
}

func TestNewErrorFormatsDetails(t *testing.T) {
	err := NewError(ErrRequestEntityTooLarge, 512)

	require.Equal(t, "File is larger than the 512 MB limit.", err.Message)
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	err := NewError(424242)

	require.Equal(t, ErrUnknown, err.Code)
	require.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestNewErrorDoesNotMutateTemplate(t *testing.T) {
	_ = NewError(ErrRequestEntityTooLarge, 1)

	require.Equal(t, "File is larger than the %d MB limit.", errorMap[ErrRequestEntityTooLarge].Message)
}
