package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func newTestConfig() *core.Config {
	return &core.Config{
		AppName:          "Darasa",
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "Darasa", Address: "noreply@localhost"},
	}
}

func Test_consoleServiceMock_capturesSentMessages(t *testing.T) {
	ClearSentMessages()
	svc := NewConsoleServiceMock(newTestConfig())

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Learner", Address: "learner@test.te"}},
		Subject: "Quick win reminder: your next topic awaits",
		BodyStr: "You have been away for a while.",
	}
	require.NoError(t, svc.SendMessage(msg))

	require.Len(t, SentMessages, 1)
	assert.Equal(t, "learner@test.te", SentMessages[0].To[0].Address)
	assert.Equal(t, "You have been away for a while.", SentMessages[0].TextContent)

	// SendMessages runs synchronously in the mock
	svc.SendMessages(msg)
	assert.Len(t, SentMessages, 2)

	ClearSentMessages()
	assert.Empty(t, SentMessages)
}

func Test_consoleService_skipsEmptyMessages(t *testing.T) {
	ClearSentMessages()
	svc := NewConsoleServiceMock(newTestConfig())

	// no recipients
	require.NoError(t, svc.SendMessage(&core.EmailMessage{Subject: "hi", BodyStr: "hello"}))
	// no content
	require.NoError(t, svc.SendMessage(&core.EmailMessage{To: []mail.Address{{Address: "learner@test.te"}}}))

	assert.Empty(t, SentMessages)
}
