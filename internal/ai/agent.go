// Package ai is the back-office assistant. A Gemini model answers questions
// about stock and sales by calling a small set of catalog and report tools.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"emporio-pos/internal/models"
	"emporio-pos/internal/sales"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const maxToolRounds = 5

var (
	ErrNotConfigured = errors.New("assistant is not configured")
	errUnknownTool   = errors.New("unknown tool")
)

// Inventory is the slice of the catalog the assistant may read and change.
type Inventory interface {
	Search(ctx context.Context, query string) ([]models.Product, error)
	LowStock(ctx context.Context) ([]models.Product, error)
	UpdatePrice(ctx context.Context, id uint, price decimal.Decimal) error
}

// SalesTotals reports completed sales of a range.
type SalesTotals interface {
	SalesTotals(ctx context.Context, r sales.Range) (int64, decimal.Decimal, error)
}

type Agent struct {
	apiKey    string
	model     string
	inventory Inventory
	reports   SalesTotals
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

func NewAgent(apiKey, model string, inventory Inventory, reports SalesTotals, loc *time.Location, logger *zap.Logger) *Agent {
	return &Agent{
		apiKey:    apiKey,
		model:     model,
		inventory: inventory,
		reports:   reports,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

func (a *Agent) Enabled() bool {
	return a.apiKey != ""
}

var tools = []*genai.Tool{{
	FunctionDeclarations: []*genai.FunctionDeclaration{
		{
			Name:        "check_inventory",
			Description: "Find products and their ID, barcode, selling price, cost price and stock. Leave query empty to list everything.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "Part of a product name, barcode or category"},
				},
			},
		},
		{
			Name:        "low_stock_products",
			Description: "List products at or below their minimum stock, most urgent first.",
		},
		{
			Name:        "update_product_price",
			Description: "Update the selling price of a specific product using its ID",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"product_id": {Type: genai.TypeInteger, Description: "ID of the product"},
					"new_price":  {Type: genai.TypeNumber, Description: "New selling price"},
				},
				Required: []string{"product_id", "new_price"},
			},
		},
		{
			Name:        "get_sales_report",
			Description: "Get the number of sales and revenue for a date range. Cancelled sales are excluded.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
					"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD), inclusive"},
				},
				Required: []string{"start_date", "end_date"},
			},
		},
	},
}}

func (a *Agent) systemPrompt() string {
	today := a.now().In(a.loc).Format("2006-01-02")
	return fmt.Sprintf(`Today is %s. You are the back-office assistant of a point of sale.

RULES:
1. If the user names a product instead of giving its ID, call 'check_inventory' to find the ID first. Never ask them for the ID.
2. For price, cost, stock or details of a product, call 'check_inventory' and answer from its result.
3. For restocking questions, call 'low_stock_products'.
4. For sales or revenue, call 'get_sales_report'. Resolve words like "today" or "last week" into dates yourself.
5. Prices are in the shop currency with two decimals.`, today)
}

// Ask runs one conversation turn, letting the model call tools until it
// answers in text.
func (a *Agent) Ask(ctx context.Context, message string) (string, error) {
	if !a.Enabled() {
		return "", ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(a.systemPrompt()))
	model.Tools = tools

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", err
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return replyText(resp), nil
		}

		parts := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			result, err := a.dispatch(ctx, call.Name, call.Args)
			if err != nil {
				a.logger.Warn("assistant tool failed", zap.String("tool", call.Name), zap.Error(err))
				result = map[string]any{"error": err.Error()}
			}
			parts = append(parts, genai.FunctionResponse{Name: call.Name, Response: result})
		}

		if resp, err = session.SendMessage(ctx, parts...); err != nil {
			return "", err
		}
	}
	return replyText(resp), nil
}

// describe flattens products into plain maps; tool responses travel as
// protobuf Structs, which only carry basic values.
func describe(products []models.Product) []any {
	out := make([]any, 0, len(products))
	for _, p := range products {
		info := map[string]any{
			"id":            int64(p.ID),
			"name":          p.Name,
			"stock":         int64(p.Stock),
			"min_stock":     int64(p.MinStock),
			"selling_price": p.SellingPrice.StringFixed(2),
			"cost_price":    p.CostPrice.StringFixed(2),
		}
		if p.Barcode != nil {
			info["barcode"] = *p.Barcode
		}
		out = append(out, info)
	}
	return out
}

// dispatch executes one tool call with the arguments the model sent.
func (a *Agent) dispatch(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "check_inventory":
		query, _ := args["query"].(string)
		products, err := a.inventory.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		return map[string]any{"products": describe(products)}, nil

	case "low_stock_products":
		products, err := a.inventory.LowStock(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"products": describe(products)}, nil

	case "update_product_price":
		id, ok := args["product_id"].(float64)
		if !ok || id < 1 {
			return nil, errors.New("product_id is required")
		}
		price, ok := args["new_price"].(float64)
		if !ok {
			return nil, errors.New("new_price is required")
		}
		newPrice := decimal.NewFromFloat(price).Round(2)
		if err := a.inventory.UpdatePrice(ctx, uint(id), newPrice); err != nil {
			return nil, err
		}
		return map[string]any{"status": "updated", "product_id": int64(id), "new_price": newPrice.StringFixed(2)}, nil

	case "get_sales_report":
		start, _ := args["start_date"].(string)
		end, _ := args["end_date"].(string)
		r, err := sales.ParseDayRange(strings.TrimSpace(start), strings.TrimSpace(end), a.loc)
		if err != nil {
			return nil, err
		}
		count, revenue, err := a.reports.SalesTotals(ctx, r)
		if err != nil {
			return nil, err
		}
		return map[string]any{"sales_count": count, "revenue": revenue.StringFixed(2)}, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnknownTool, name)
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if call, ok := part.(genai.FunctionCall); ok {
				calls = append(calls, call)
			}
		}
		break
	}
	return calls
}

func replyText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "I completed the action."
	}
	return sb.String()
}
