package coordination

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stylesync/internal/domain"
)

func TestDeletingSetMembership(t *testing.T) {
	c := NewContext()
	defer c.Close()

	require.False(t, c.IsDeleting("p1"))

	c.MarkDeleting("p1")
	c.MarkDeleting("p2")
	require.True(t, c.IsDeleting("p1"))
	require.True(t, c.IsDeleting("p2"))
	require.Equal(t, 2, c.DeletingCount())

	c.UnmarkDeleting("p1")
	require.False(t, c.IsDeleting("p1"))
	require.True(t, c.IsDeleting("p2"))
}

func TestActiveDetailLastWriteWins(t *testing.T) {
	c := NewContext()
	defer c.Close()

	require.Nil(t, c.ActiveDetail())

	first := &domain.SessionDetail{SessionID: "s1"}
	second := &domain.SessionDetail{SessionID: "s2"}
	c.SetActiveDetail(first)
	c.SetActiveDetail(second)
	require.Equal(t, "s2", c.ActiveDetail().SessionID)

	c.SetActiveDetail(nil)
	require.Nil(t, c.ActiveDetail())
}

func TestPublishReachesSubscribers(t *testing.T) {
	c := NewContext()
	defer c.Close()

	var refs []string
	c.Subscribe(domain.EventItemDeleted, func(e domain.DomainEvent) {
		refs = append(refs, e.(domain.ItemDeletedEvent).Ref)
	})

	c.Publish(domain.ItemDeletedEvent{Ref: "p1"})
	require.Equal(t, []string{"p1"}, refs)
}

func TestCloseResetsSharedState(t *testing.T) {
	c := NewContext()
	c.MarkDeleting("p1")
	c.SetActiveDetail(&domain.SessionDetail{SessionID: "s1"})

	var count int
	c.SubscribeAll(func(e domain.DomainEvent) { count++ })

	c.Close()

	require.False(t, c.IsDeleting("p1"))
	require.Nil(t, c.ActiveDetail())
	c.Publish(domain.ItemDeletedEvent{Ref: "p2"})
	require.Zero(t, count)
}
