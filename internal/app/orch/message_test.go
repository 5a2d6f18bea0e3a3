package orch

import (
	"testing"
	"time"

	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(id string, room domain.RoomID) domain.Message {
	return domain.Message{ID: id, RoomID: room, Content: "hello"}
}

func TestSendMessageFanout(t *testing.T) {
	h := newHarness(t)
	sender, senderSig := h.joined(t, "u1", "r1")
	_, otherTab := h.joined(t, "u1", "r1")
	_, peer := h.joined(t, "u2", "r1")
	_, outsider := h.joined(t, "u3", "r2")

	var ack ackRec
	h.o.SendMessage(sender, textMessage("m1", "r1"), ack.fn())
	assert.True(t, ack.last().Success)
	assert.Zero(t, senderSig.count("receive-message"), "sender is excluded")
	assert.Equal(t, 1, otherTab.count("receive-message"))
	assert.Equal(t, 1, peer.count("receive-message"))
	assert.Zero(t, outsider.count("receive-message"))

	got := decodeAs[domain.Message](t, peer.events("receive-message")[0])
	assert.Equal(t, domain.UserID("u1"), got.SenderID)
	assert.Equal(t, "name-u1", got.SenderName)

	sys, _ := h.connect("")
	var sysAck ackRec
	h.o.SendMessage(sys, textMessage("m1", "r1"), sysAck.fn())
	assert.True(t, sysAck.last().Success)
	assert.Equal(t, 1, senderSig.count("receive-message"), "system echo reaches the sender too")
	assert.Equal(t, 2, otherTab.count("receive-message"))
	assert.Equal(t, 2, peer.count("receive-message"))
}

func TestSendMessageRejections(t *testing.T) {
	h := newHarness(t)
	sender, _ := h.joined(t, "u1", "r1")
	_, peer := h.joined(t, "u2", "r1")

	var ack ackRec
	h.o.SendMessage(sender, domain.Message{ID: "m1", RoomID: "r1"}, ack.fn())
	assert.Equal(t, ErrTextMissingFields, ack.last().Error)

	h.o.SendMessage(sender, domain.Message{ID: "m1", Content: "x"}, ack.fn())
	assert.Equal(t, ErrTextMissingFields, ack.last().Error)

	h.o.SendMessage(sender, domain.Message{RoomID: "r1", Content: "x"}, ack.fn())
	assert.Equal(t, ErrTextMissingID, ack.last().Error)

	assert.Zero(t, peer.count("receive-message"))
	for _, r := range ack.got {
		assert.False(t, r.Success)
	}

	h.o.SendMessage(sender, domain.Message{ID: "m2", RoomID: "r1", ImageURL: "https://cdn/x.png"}, ack.fn())
	assert.True(t, ack.last().Success, "a file reference replaces text")
	h.o.SendMessage(sender, domain.Message{ID: "m3", RoomID: "r1"}, nil)
	assert.Equal(t, 1, peer.count("receive-message"))
}

func TestSendMessageRateLimit(t *testing.T) {
	h := newHarness(t)
	sender, _ := h.joined(t, "u1", "r1")
	_, peer := h.joined(t, "u2", "r1")

	var ack ackRec
	for i := 0; i < 10; i++ {
		h.o.SendMessage(sender, textMessage("m", "r1"), ack.fn())
		require.True(t, ack.last().Success, "message %d", i+1)
		h.clk.Add(50 * time.Millisecond)
	}
	h.o.SendMessage(sender, textMessage("m", "r1"), ack.fn())
	assert.False(t, ack.last().Success)
	assert.Equal(t, ErrTextRateLimited, ack.last().Error)
	assert.Equal(t, 60, ack.last().RetryAfter)
	assert.Equal(t, 10, peer.count("receive-message"))

	h.clk.Add(60 * time.Second)
	h.o.SendMessage(sender, textMessage("m", "r1"), ack.fn())
	assert.True(t, ack.last().Success)
	assert.Equal(t, 11, peer.count("receive-message"))
}

func TestSystemSenderBypassesRateLimit(t *testing.T) {
	h := newHarness(t)
	_, peer := h.joined(t, "u2", "r1")
	sys, _ := h.connect("")

	var ack ackRec
	for i := 0; i < 25; i++ {
		h.o.SendMessage(sys, textMessage("m", "r1"), ack.fn())
	}
	assert.Equal(t, 25, peer.count("receive-message"))
}

func TestEditThenDeleteReachesSender(t *testing.T) {
	h := newHarness(t)
	sender, senderSig := h.joined(t, "u1", "r1")
	_, peer := h.joined(t, "u2", "r1")

	h.o.MessageUpdated(sender, domain.MessageEdit{MessageID: "m1", Content: "edited", RoomID: "r1"})
	h.o.MessageDeleted(sender, domain.MessageEdit{MessageID: "m1", RoomID: "r1"})

	for _, sig := range []*recSignal{senderSig, peer} {
		require.Equal(t, 1, sig.count("message-updated"))
		require.Equal(t, 1, sig.count("message-deleted"))
		up := decodeAs[messageUpdated](t, sig.events("message-updated")[0])
		assert.Equal(t, "edited", up.Content)
		del := decodeAs[messageDeleted](t, sig.events("message-deleted")[0])
		assert.Equal(t, "m1", del.MessageID)
	}
}

func TestMutationRejectionsAreSilent(t *testing.T) {
	h := newHarness(t)
	sender, senderSig := h.joined(t, "u1", "r1")

	h.o.MessageUpdated(sender, domain.MessageEdit{Content: "no id", RoomID: "r1"})
	assert.Zero(t, senderSig.count("message-updated"))

	for i := 0; i < 7; i++ {
		h.o.MessageDeleted(sender, domain.MessageEdit{MessageID: "m1", RoomID: "r1"})
	}
	assert.Equal(t, 5, senderSig.count("message-deleted"))
}

func TestReactionsAreNotRateLimited(t *testing.T) {
	h := newHarness(t)
	sender, senderSig := h.joined(t, "u1", "r1")
	_, peer := h.joined(t, "u2", "r1")

	for i := 0; i < 7; i++ {
		h.o.ReactionUpdated(sender, domain.Reactions{MessageID: "m1", RoomID: "r1", Reactions: []byte(`{"+1":["u1"]}`)})
	}
	assert.Equal(t, 7, senderSig.count("reaction-updated"))
	assert.Equal(t, 7, peer.count("reaction-updated"))
	got := decodeAs[reactionUpdated](t, senderSig.events("reaction-updated")[0])
	assert.JSONEq(t, `{"+1":["u1"]}`, string(got.Reactions))

	h.o.MessageUpdated(sender, domain.MessageEdit{MessageID: "m1", Content: "edited", RoomID: "r1"})
	assert.Equal(t, 1, peer.count("message-updated"), "reactions leave the edit quota alone")

	h.o.ReactionUpdated(sender, domain.Reactions{RoomID: "r1"})
	assert.Equal(t, 7, peer.count("reaction-updated"), "invalid payloads are still dropped")
}

func TestSendMessageStampsAuthenticatedSender(t *testing.T) {
	h := newHarness(t)
	sender, _ := h.joined(t, "u1", "r1")
	_, peer := h.joined(t, "u2", "r1")

	msg := textMessage("m1", "r1")
	msg.SenderID = "u2"
	msg.SenderName = "someone else"
	msg.SenderAvatar = "fake.png"
	h.o.SendMessage(sender, msg, nil)

	got := decodeAs[domain.Message](t, peer.events("receive-message")[0])
	assert.Equal(t, domain.UserID("u1"), got.SenderID)
	assert.Equal(t, "name-u1", got.SenderName)
	assert.Equal(t, "u1.png", got.SenderAvatar)

	sys, _ := h.connect("")
	saved := textMessage("m2", "r1")
	saved.SenderID = "u1"
	saved.SenderName = "ana"
	h.o.SendMessage(sys, saved, nil)
	got = decodeAs[domain.Message](t, peer.events("receive-message")[1])
	assert.Equal(t, "ana", got.SenderName, "the system relay keeps the saved sender")
}

func TestTypingExcludesSenderAndIsLimited(t *testing.T) {
	h := newHarness(t)
	sender, senderSig := h.joined(t, "u1", "r1")
	_, peer := h.joined(t, "u2", "r1")

	for i := 0; i < 8; i++ {
		h.o.Typing(sender, domain.Typing{RoomID: "r1", UserID: "spoofed"})
	}
	assert.Zero(t, senderSig.count("user-typing"))
	require.Equal(t, 5, peer.count("user-typing"))
	got := decodeAs[typingEvent](t, peer.events("user-typing")[0])
	assert.Equal(t, domain.UserID("u1"), got.UserID)
	assert.Equal(t, "name-u1", got.UserName)

	h.clk.Add(time.Second)
	h.o.StopTyping(sender, domain.Typing{RoomID: "r1"})
	assert.Equal(t, 1, peer.count("user-stop-typing"))
}

func TestReceiptsReachWholeRoom(t *testing.T) {
	h := newHarness(t)
	reader, readerSig := h.joined(t, "u2", "r1")
	_, author := h.joined(t, "u1", "r1")

	h.o.MessageRead(reader, domain.Receipt{MessageID: "m1", RoomID: "r1", UserID: "u2"})
	h.o.MessageDelivered(reader, domain.Receipt{MessageID: "m1", RoomID: "r1"})

	for _, sig := range []*recSignal{readerSig, author} {
		assert.Equal(t, 1, sig.count("message-read-update"))
		require.Equal(t, 1, sig.count("message-delivered-update"))
		got := decodeAs[receiptEvent](t, sig.events("message-delivered-update")[0])
		assert.Equal(t, domain.UserID("u2"), got.UserID)
	}
}
