package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/knoguchi/prodsearch/internal/llm"
	"github.com/knoguchi/prodsearch/internal/repository"
)

const explainSystemPrompt = `You are a helpful shopping assistant. Explain in two or three sentences why the product could suit the shopper's search. Use only the product details given. Do not invent prices, ingredients or claims.`

// ExplainService produces short natural-language explanations of a product's fit for a query.
type ExplainService struct {
	catalog   *CatalogService
	llmClient llm.LLM
	model     string
}

// NewExplainService creates a new ExplainService
func NewExplainService(catalog *CatalogService, llmClient llm.LLM, model string) *ExplainService {
	return &ExplainService{catalog: catalog, llmClient: llmClient, model: model}
}

// Explanation is the answer for one product
type Explanation struct {
	ProductID   string `json:"product_id"`
	Query       string `json:"query,omitempty"`
	Explanation string `json:"explanation"`
}

// Explain looks up the product and asks the language model why it fits query.
// An empty query asks for a general product summary.
func (s *ExplainService) Explain(ctx context.Context, productID, query string) (*Explanation, error) {
	item, err := s.catalog.GetItem(ctx, productID)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	answer, err := s.llmClient.Generate(ctx, buildExplainPrompt(item, query), llm.GenerateOptions{
		Model:        s.model,
		SystemPrompt: explainSystemPrompt,
		Temperature:  0.2,
		MaxTokens:    200,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExplanationUnavailable, err)
	}

	return &Explanation{
		ProductID:   item.ProductID,
		Query:       query,
		Explanation: answer,
	}, nil
}

func buildExplainPrompt(item *repository.Item, query string) string {
	var sb strings.Builder

	if query != "" {
		fmt.Fprintf(&sb, "Shopper search: %s\n\n", query)
	} else {
		sb.WriteString("Summarize this product for a shopper.\n\n")
	}

	sb.WriteString("Product:\n")
	writeField(&sb, "Name", item.Name)
	writeField(&sb, "Brand", item.Brand)
	writeField(&sb, "Category", item.Category)
	if item.Price != nil {
		writeField(&sb, "Price", strings.TrimSpace(fmt.Sprintf("%s %g", item.Currency, *item.Price)))
	}
	if item.Rating != nil {
		reviews := 0
		if item.ReviewsCount != nil {
			reviews = *item.ReviewsCount
		}
		writeField(&sb, "Rating", fmt.Sprintf("%.1f/5 from %d reviews", *item.Rating, reviews))
	}
	writeField(&sb, "Tags", item.Tags)
	writeField(&sb, "Contents", truncate(item.Contents, 400))
	writeField(&sb, "Description", truncate(item.Description, 800))

	return sb.String()
}

func writeField(sb *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(sb, "- %s: %s\n", label, value)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
