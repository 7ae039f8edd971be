package notifier

import (
	"log/slog"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	messages []string
}

func (r *recorder) Notify(msg string) {
	r.messages = append(r.messages, msg)
}

func TestNotifiers(t *testing.T) {
	var a, b recorder
	n := Notifiers{&a, &b, SLogNotifier{Logger: slog.Default()}}
	n.Notify("hello")
	assert.Equal(t, []string{"hello"}, a.messages)
	assert.Equal(t, []string{"hello"}, b.messages)
}

type fakeSlackSender struct {
	posted []string
}

func (f *fakeSlackSender) PostMessage(channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.posted = append(f.posted, channelID)
	return "", "", nil
}

func (f *fakeSlackSender) GetConversations(*slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	joined := slack.Channel{}
	joined.ID = "C1"
	joined.IsMember = true
	notJoined := slack.Channel{}
	notJoined.ID = "C2"
	return []slack.Channel{joined, notJoined}, "", nil
}

func (f *fakeSlackSender) AuthTest() (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "U1"}, nil
}

func TestSlackNotifier(t *testing.T) {
	sender := &fakeSlackSender{}
	n := SlackNotifier{Logger: slog.Default(), SlackSender: sender}

	n.Notify("display set to media")
	n.Notify("breaker opened")

	require.Len(t, sender.posted, 2)
	assert.Equal(t, []string{"C1", "C1"}, sender.posted)
}
