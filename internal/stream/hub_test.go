package stream

import (
	"testing"
)

func testClient(hub *Hub) *Client {
	return &Client{id: "test", hub: hub, send: make(chan *Message, 8)}
}

func TestDeliver_ChannelRouting(t *testing.T) {
	hub := NewHub()
	subscriber := testClient(hub)
	bystander := testClient(hub)
	hub.clients[subscriber] = true
	hub.clients[bystander] = true

	hub.Subscribe(subscriber, []string{ChannelAssessments})

	hub.deliver(&Message{Type: "update", Channel: ChannelAssessments, Data: "payload"})

	select {
	case msg := <-subscriber.send:
		if msg.Data != "payload" {
			t.Errorf("Unexpected payload: %v", msg.Data)
		}
	default:
		t.Fatal("Subscriber did not receive the message")
	}

	select {
	case msg := <-bystander.send:
		t.Errorf("Bystander must not receive channel messages, got %v", msg)
	default:
	}
}

func TestDeliver_NoChannelBroadcastsToAll(t *testing.T) {
	hub := NewHub()
	a := testClient(hub)
	b := testClient(hub)
	hub.clients[a] = true
	hub.clients[b] = true

	hub.deliver(&Message{Type: "update"})

	for _, client := range []*Client{a, b} {
		select {
		case <-client.send:
		default:
			t.Error("All clients must receive channel-less messages")
		}
	}
}

func TestDeliver_FullBufferDropsMessage(t *testing.T) {
	hub := NewHub()
	client := &Client{id: "full", hub: hub, send: make(chan *Message)}
	hub.clients[client] = true
	hub.Subscribe(client, []string{ChannelInvestigations})

	// Unbuffered channel with no reader: delivery must not block.
	hub.deliver(&Message{Type: "update", Channel: ChannelInvestigations})
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	client := testClient(hub)
	hub.clients[client] = true

	hub.Subscribe(client, []string{ChannelTranslations})
	hub.Unsubscribe(client, []string{ChannelTranslations})

	hub.deliver(&Message{Type: "update", Channel: ChannelTranslations})

	select {
	case msg := <-client.send:
		t.Errorf("Unsubscribed client must not receive messages, got %v", msg)
	default:
	}
}
