package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub/internal/domain/entity"
)

func TestCanMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		sender, recipient string
		want              bool
	}{
		{"t1", "t2", true},
		{"t1", "s1", true},
		{"s1", "t1", true},
		{"s2", "t2", true},
		{"t1", "s3", false},
		{"s1", "t2", false},
		{"s1", "s2", false},
		{"a1", "t1", false},
		{"t1", "a1", false},
		{"t1", "t1", false},
		{"t1", "ghost", false},
		{"", "t1", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.sender, tt.recipient), func(t *testing.T) {
			assert.Equal(t, tt.want, f.permissions.CanMessage(ctx, tt.sender, tt.recipient))
		})
	}
}

func TestCanMessage_Symmetric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for a := range f.users.users {
		for b := range f.users.users {
			assert.Equal(t,
				f.permissions.CanMessage(ctx, a, b),
				f.permissions.CanMessage(ctx, b, a),
				"%s <-> %s", a, b)
		}
	}
}

func TestCanMessage_FailsClosedOnLookupError(t *testing.T) {
	f := newFixture(t)
	f.courses.err = fmt.Errorf("firestore unavailable")

	assert.False(t, f.permissions.CanMessage(context.Background(), "t1", "s1"))
	assert.True(t, f.permissions.CanMessage(context.Background(), "t1", "t2"))
}

func summaryIDs(users []*entity.UserSummary) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestListMessageable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		caller string
		search string
		want   []string
	}{
		// Sorted by lowercase name: Sam, Sue, tom.
		{"teacher sees own students and other teachers", "t1", "", []string{"s1", "s2", "t2"}},
		{"teacher with one course", "t2", "", []string{"s2", "t1"}},
		{"student sees teachers of enrolled courses", "s2", "", []string{"t1", "t2"}},
		{"unenrolled student sees nobody", "s3", "", []string{}},
		{"other roles see nobody", "a1", "", []string{}},
		{"unknown caller", "ghost", "", []string{}},
		{"search by name", "t1", "SUE", []string{"s2"}},
		{"search by email", "s2", "tom@", []string{"t2"}},
		{"search without match", "t1", "zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := f.permissions.ListMessageable(ctx, tt.caller, tt.search)
			require.NoError(t, err)
			assert.Equal(t, tt.want, summaryIDs(users))
		})
	}
}

// Everyone listed must also pass CanMessage, so the directory never offers
// a user that send would reject.
func TestListMessageable_AgreesWithCanMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for caller := range f.users.users {
		users, err := f.permissions.ListMessageable(ctx, caller, "")
		require.NoError(t, err)

		listed := make(map[string]bool)
		for _, u := range users {
			listed[u.ID] = true
		}
		for other := range f.users.users {
			assert.Equal(t, f.permissions.CanMessage(ctx, caller, other), listed[other], "%s -> %s", caller, other)
		}
	}
}

func TestListMessageable_Deduplicates(t *testing.T) {
	f := newFixture(t)
	f.courses.courses = append(f.courses.courses, &entity.Course{ID: "c3", TeacherID: "t1", Students: []string{"s1", "s1", "t2"}})

	users, err := f.permissions.ListMessageable(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "t2"}, summaryIDs(users))
}
