package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trade-admission/admission/domain"

	"github.com/segmentio/kafka-go"
)

// AcceptedEvent é o payload publicado para o serviço de mensagens,
// que cria a thread de conversa do anúncio.
type AcceptedEvent struct {
	ID         string         `json:"id"`
	ThreadName string         `json:"threadName"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Verdict    domain.Verdict `json:"verdict"`
	OwnerID    string         `json:"ownerId,omitempty"`
	Discord    string         `json:"discord,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// KafkaNotifier implementa domain.Notifier publicando AcceptedEvent num tópico.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

var _ domain.Notifier = (*KafkaNotifier)(nil)

func (n *KafkaNotifier) SubmissionAccepted(ctx context.Context, s domain.Submission) error {
	data, err := json.Marshal(NewAcceptedEvent(s))
	if err != nil {
		return fmt.Errorf("encode accepted event: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.ID),
		Value: data,
		Time:  s.CreatedAt,
	})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func NewAcceptedEvent(s domain.Submission) AcceptedEvent {
	return AcceptedEvent{
		ID:         s.ID,
		ThreadName: ThreadName(s),
		Summary:    threadSummary(s),
		Title:      s.Title,
		Verdict:    s.Verdict,
		OwnerID:    s.OwnerID,
		Discord:    s.Discord,
		CreatedAt:  s.CreatedAt,
	}
}

// ThreadName monta o nome da thread com no máximo 4 nomes por lado.
func ThreadName(s domain.Submission) string {
	offer := itemNames(s.Side1, 4)
	request := itemNames(s.Side2, 4)
	if offer == "" && request == "" {
		if s.Title != "" {
			return "Trade: " + s.Title
		}
		return "Trade Discussion"
	}
	if offer == "" {
		offer = "Offer"
	}
	if request == "" {
		request = "Request"
	}
	return "Trade: " + offer + " FOR " + request
}

func threadSummary(s domain.Submission) string {
	offer := itemNames(s.Side1, 0)
	if offer == "" {
		offer = "—"
	}
	request := itemNames(s.Side2, 0)
	if request == "" {
		request = "—"
	}
	return "**Offer:** " + offer + "\n**Request:** " + request + "\n**Verdict:** " + string(s.Verdict)
}

// itemNames junta até limit nomes (limit <= 0 = todos).
func itemNames(items []domain.Item, limit int) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		names = append(names, it.Name)
		if limit > 0 && len(names) == limit {
			break
		}
	}
	return strings.Join(names, ", ")
}
