package board

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boardengine "github.com/Ramsey-B/trellis/pkg/board"
	"github.com/Ramsey-B/trellis/pkg/stages"
)

func TestMoveError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"NotFound", fmt.Errorf("%w: d1", boardengine.ErrNotFound), http.StatusNotFound},
		{"StaleIndex", fmt.Errorf("%w: d1 is not at contact[2]", boardengine.ErrStaleIndex), http.StatusConflict},
		{"InvalidRange", fmt.Errorf("%w: -1", boardengine.ErrInvalidRange), http.StatusBadRequest},
		{"UnknownStage", fmt.Errorf("%w: %q", stages.ErrUnknownStage, "negotiation"), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := moveError(tt.err)
			require.True(t, httperror.IsHTTPError(err))
			assert.Equal(t, tt.status, httperror.GetStatusCode(err))
		})
	}

	t.Run("UnmappedErrorPassesThrough", func(t *testing.T) {
		unknown := errors.New("board hydration failed")
		err := moveError(unknown)
		assert.Equal(t, unknown, err)
	})
}
