package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		messagesReceived,
		messagesSent,
	)
}

var (
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_received_total",
			Help: "Inbound messages by chat type.",
		},
		[]string{"chat_type"},
	)

	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_messages_sent_total",
			Help: "Outbound messages by delivery success.",
		},
		[]string{"success"},
	)
)

func MessageReceived(isGroup bool) {
	t := "private"
	if isGroup {
		t = "group"
	}
	messagesReceived.WithLabelValues(t).Inc()
}

func MessageSent(success bool) {
	messagesSent.WithLabelValues(strconv.FormatBool(success)).Inc()
}
