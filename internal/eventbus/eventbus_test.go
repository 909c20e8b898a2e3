package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stylesync/internal/domain"
)

func TestSubscribersReceiveEventsInPublishOrder(t *testing.T) {
	bus := New()
	defer bus.Close()

	var got []string
	bus.SubscribeAll(func(e DomainEvent) {
		switch ev := e.(type) {
		case ItemDeletedEvent:
			got = append(got, "deleted:"+ev.Ref)
		case ItemSavedEvent:
			got = append(got, "saved:"+ev.Ref)
		}
	})

	bus.Publish(ItemSavedEvent{Ref: "p1"})
	bus.Publish(ItemDeletedEvent{Ref: "p1"})
	bus.Publish(ItemDeletedEvent{Ref: "p2"})

	require.Equal(t, []string{"saved:p1", "deleted:p1", "deleted:p2"}, got)
}

func TestLateSubscriberSeesNothingPublishedBefore(t *testing.T) {
	bus := New()
	defer bus.Close()

	bus.Publish(ItemDeletedEvent{Ref: "gone"})

	var got []DomainEvent
	bus.SubscribeAll(func(e DomainEvent) { got = append(got, e) })

	require.Empty(t, got, "no replay for late subscribers")

	bus.Publish(ItemDeletedEvent{Ref: "p1"})
	require.Len(t, got, 1)
}

func TestTypedSubscriptionOnlySeesItsType(t *testing.T) {
	bus := New()
	defer bus.Close()

	var deleted int
	bus.Subscribe(EventItemDeleted, func(e DomainEvent) { deleted++ })

	bus.Publish(ItemSavedEvent{Ref: "p1"})
	bus.Publish(ItemDeletedEvent{Ref: "p1"})
	bus.Publish(HistoryRefreshedEvent{})

	require.Equal(t, 1, deleted)
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	bus := New()
	defer bus.Close()

	var before, after int
	bus.SubscribeAll(func(e DomainEvent) { before++ })
	bus.SubscribeAll(func(e DomainEvent) { panic("listener bug") })
	bus.SubscribeAll(func(e DomainEvent) { after++ })

	require.NotPanics(t, func() {
		bus.Publish(ItemDeletedEvent{Ref: "p1"})
	})
	require.Equal(t, 1, before)
	require.Equal(t, 1, after, "listener after the faulty one still runs")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	defer bus.Close()

	var count int
	unsub := bus.SubscribeAll(func(e DomainEvent) { count++ })

	bus.Publish(ItemDeletedEvent{Ref: "p1"})
	unsub()
	bus.Publish(ItemDeletedEvent{Ref: "p2"})

	require.Equal(t, 1, count)
}

func TestDeliveryOrderFollowsRegistrationOrder(t *testing.T) {
	bus := New()
	defer bus.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.SubscribeAll(func(e DomainEvent) { order = append(order, i) })
	}

	bus.Publish(domain.ErrorEvent{Message: "x"})
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestCloseClearsSubscribers(t *testing.T) {
	bus := New()

	var count int
	bus.SubscribeAll(func(e DomainEvent) { count++ })
	bus.Close()

	bus.Publish(ItemDeletedEvent{Ref: "p1"})
	require.Zero(t, count)
}
