package phrase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator is the one concrete Generator this module ships: it asks
// an OpenAI-compatible chat endpoint for a short decorative line. It is
// entirely optional — wiring a nil Generator (or leaving OPENAI_API_KEY
// empty) makes every call fall back to the static template table.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIGenerator builds a generator with its own short-timeout HTTP
// client; the outer phrase.Generate race imposes the real deadline, this
// is just a backstop against a hung transport.
func NewOpenAIGenerator(apiKey, model string, temperature float32, maxTokens int) *OpenAIGenerator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if temperature == 0 {
		temperature = 0.8
	}
	if maxTokens == 0 {
		maxTokens = 60
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, kind Kind, pc Context) (string, error) {
	prompt := promptFor(kind, pc)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "Kamu asisten pemesanan resto via WhatsApp. Balas SATU kalimat pendek, " +
					"ramah, dalam Bahasa Indonesia. Jangan gunakan markdown atau emoji berlebihan.",
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai phrase generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai phrase generation: empty choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// promptFor turns a Kind + Context into the single user instruction sent to
// the model; it stays deterministic given the same inputs so tests can at
// least assert on the instruction text without calling the network.
func promptFor(kind Kind, pc Context) string {
	switch kind {
	case KindGreeting:
		return "Sapa pelanggan baru yang baru saja mengirim pesan pertama."
	case KindItemAdded:
		return fmt.Sprintf("Konfirmasi item %q sudah ditambahkan ke keranjang.", pc.ItemName)
	case KindCartSummary:
		return fmt.Sprintf("Antar ringkasan keranjang dengan total %s.", pc.Total)
	case KindOrderConfirmed:
		return fmt.Sprintf("Ucapkan terima kasih, pesanan dengan total %s sudah dikonfirmasi.", pc.Total)
	case KindOutOfZone:
		return "Informasikan lokasi pelanggan di luar zona pengiriman, tawarkan ambil sendiri."
	case KindMinimumNotMet:
		return "Informasikan belanja belum mencapai minimum pengiriman."
	case KindTransientError:
		return "Minta maaf atas gangguan sistem sementara."
	case KindTrackingUpdate:
		return fmt.Sprintf("Sampaikan status pesanan saat ini: %s.", pc.Status)
	default:
		return "Berikan balasan ramah singkat."
	}
}

func (g *OpenAIGenerator) GetProviderName() string { return "OpenAI" }
