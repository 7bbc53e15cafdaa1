package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylverse/storefront/internal/model"
)

func TestSendGridSenderPostsMessage(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.key", "orders@vinylverse.test", srv.URL, nil)
	err := s.Send(context.Background(), Message{To: "buyer@example.com", Subject: "Hi", HTML: "<p>Hi</p>", ReplyTo: "me@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer SG.key", gotAuth)
	assert.Equal(t, "Hi", gotBody["subject"])
	assert.NotNil(t, gotBody["reply_to"])
}

func TestSendGridSenderFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.bad", "orders@vinylverse.test", srv.URL, nil)
	err := s.Send(context.Background(), Message{To: "buyer@example.com", Subject: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendGridSenderValidates(t *testing.T) {
	assert.Error(t, NewSendGridSender("", "a@b.c", "", nil).Send(context.Background(), Message{To: "x@y.z"}))
	assert.Error(t, NewSendGridSender("k", "", "", nil).Send(context.Background(), Message{To: "x@y.z"}))
	assert.Error(t, NewSendGridSender("k", "a@b.c", "", nil).Send(context.Background(), Message{}))
}

func TestOrderConfirmation(t *testing.T) {
	order := model.Order{
		ID:              12,
		Status:          model.OrderPaid,
		TotalPrice:      55,
		ShippingAddress: "Ann Smith, 1 Main St, Portland, OR 97201",
		Items: []model.OrderItem{
			{Title: "Kind of Blue", Artist: "Miles Davis", Price: 25},
			{Title: "Blue Train", Artist: "John Coltrane", Price: 30},
		},
	}
	msg, err := OrderConfirmation("buyer@example.com", order)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", msg.To)
	assert.Equal(t, "Your Vinylverse order #12", msg.Subject)
	assert.Contains(t, msg.HTML, "Kind of Blue by Miles Davis: $25.00")
	assert.Contains(t, msg.HTML, "Total: $55.00")
	assert.Contains(t, msg.Text, "Total: $55.00")
}

func TestContactMessage(t *testing.T) {
	msg, err := ContactMessage("support@vinylverse.test", "fan@example.com", 7, "<b>hello</b>")
	require.NoError(t, err)
	assert.Equal(t, "support@vinylverse.test", msg.To)
	assert.Equal(t, "fan@example.com", msg.ReplyTo)
	assert.Contains(t, msg.HTML, "<b>hello</b>")
	assert.Contains(t, msg.HTML, "user #7")
}
