package subject

import (
	"errors"
	"testing"

	"entity-persister/core/value"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) *Subject
		conflict Conflict
	}{
		{
			name: "insert only",
			setup: func(t *testing.T) *Subject {
				s := newPost(t, value.RecordOf("title", "x"))
				s.CanBeInserted = true
				s.CanBeUpdated = true
				return s
			},
		},
		{
			name: "insert and remove",
			setup: func(t *testing.T) *Subject {
				s := newPost(t, value.RecordOf("title", "x"))
				s.CanBeInserted = true
				s.MustBeRemoved = true
				return s
			},
			conflict: ConflictInsertRemove,
		},
		{
			name: "update and remove",
			setup: func(t *testing.T) *Subject {
				s := newPost(t, value.RecordOf("id", 1, "title", "new"))
				s.CanBeUpdated = true
				s.MustBeRemoved = true
				_, _, err := s.AttachDatabaseSnapshot(value.RecordOf("id", 1, "title", "old"))
				require.NoError(t, err)
				return s
			},
			conflict: ConflictUpdateRemove,
		},
		{
			name: "insert and update",
			setup: func(t *testing.T) *Subject {
				s := newPost(t, value.RecordOf("id", 1, "author", 3))
				s.CanBeInserted = true
				s.CanBeUpdated = true
				s.ScheduleRelationChange(s.Metadata().Relation("author"))
				return s
			},
			conflict: ConflictInsertUpdate,
		},
		{
			name: "remove stored row",
			setup: func(t *testing.T) *Subject {
				s := newPost(t, nil)
				s.MustBeRemoved = true
				_, _, err := s.AttachDatabaseSnapshot(value.RecordOf("id", 1))
				require.NoError(t, err)
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setup(t).Validate()
			if tt.conflict == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConflictingOperation))

			var cerr *ConflictingOperationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.conflict, cerr.Conflict)
			assert.Equal(t, "post", cerr.Entity)
		})
	}
}

func TestConflictingOperationError_Messages(t *testing.T) {
	err := &ConflictingOperationError{Entity: "post", Identifier: value.Scalar(1), Conflict: ConflictUpdateRemove}
	assert.Contains(t, err.Error(), "updated and removed")
	assert.Contains(t, err.Error(), "post 1")
}
