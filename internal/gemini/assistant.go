package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	gl "google.golang.org/api/generativelanguage/v1beta"

	"weddingsync/internal/core"
)

const (
	fnModifyBudget   = "modifyAccountBudget"
	fnQuickAdd       = "quickAddTransaction"
	defaultChatReply = "Butler action complete."
)

// Actions are the domain operations the assistant may trigger. Both return
// a short explanation; errors are reserved for failures to persist.
type Actions interface {
	ModifyBudget(ctx context.Context, name string, delta core.Money, target core.TargetType) (string, error)
	RecordTransaction(ctx context.Context, name string, amount core.Money, account string, target core.TargetType) (string, error)
}

// ChatContext is the slice of state the model gets to see.
type ChatContext struct {
	BudgetSources []string
	BankAccounts  []string
	TotalBudget   core.Money
	TotalSpent    core.Money
	Available     core.Money
}

type ActionResult struct {
	Function string `json:"function"`
	Summary  string `json:"summary"`
	Result   string `json:"result"`
}

type Reply struct {
	Text    string         `json:"text"`
	Actions []ActionResult `json:"actions"`
}

type modifyArgs struct {
	AccountName string   `json:"accountName" validate:"required"`
	Delta       *float64 `json:"delta" validate:"required"`
	TargetType  string   `json:"targetType" validate:"required,oneof=budget bank"`
}

type quickAddArgs struct {
	Name        string   `json:"name" validate:"required"`
	Amount      *float64 `json:"amount" validate:"required,gt=0"`
	AccountName string   `json:"accountName" validate:"required"`
	TargetType  string   `json:"targetType" validate:"required,oneof=budget bank"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

func chatPrompt(cc ChatContext, message string) string {
	return fmt.Sprintf(`You are a surgical wedding financial assistant.

CONTEXT:
- Budget Sources (Settings/Ledger): [%s]
- Bank Accounts (Bank Section): [%s]
- Summary: Budget=%s, Spent=%s, Balance=%s

RULES FOR TRANSACTIONS:
1. IF USER "RECEIVED" MONEY (Income/Gift):
   - Use targetType 'budget'. This INCREASES the Total Budget and Balance.
2. IF USER "SPENT" MONEY (Expense/Payment):
   - Use targetType 'budget' for Ledger tracking. This INCREASES Total Spent and DECREASES Balance.
3. IF KEYWORD matches "Bank Accounts" list, use targetType 'bank' (Isolated to Bank Section).

User request: %q`,
		strings.Join(cc.BudgetSources, ", "),
		strings.Join(cc.BankAccounts, ", "),
		cc.TotalBudget, cc.TotalSpent, cc.Available,
		message)
}

// Chat sends one user message with the current context, executes every
// valid function call the model returns and builds the reply from the
// action summaries followed by the model's own text.
func (c *Client) Chat(ctx context.Context, message string, cc ChatContext, actions Actions) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, newError(MsgChatFailed, fmt.Errorf("empty message"))
	}

	req := &gl.GenerateContentRequest{
		Contents:         userContent(textPart(chatPrompt(cc, message))),
		GenerationConfig: assistantConfig.GenerationConfig,
		Tools:            assistantConfig.Tools,
	}
	resp, err := c.generate(ctx, "chat", req)
	if err != nil {
		return Reply{}, newError(MsgChatFailed, err)
	}

	text := responseText(resp)
	if text == "" {
		text = defaultChatReply
	}

	var results []ActionResult
	for _, call := range functionCalls(resp) {
		res, err := c.dispatch(ctx, call, actions)
		if err != nil {
			return Reply{}, newError(MsgChatFailed, err)
		}
		results = append(results, res)
	}

	reply := Reply{Text: text, Actions: results}
	if len(results) > 0 {
		lines := make([]string, 0, len(results))
		for _, r := range results {
			lines = append(lines, r.Summary)
		}
		tail := text
		if tail == defaultChatReply {
			tail = ""
		}
		reply.Text = strings.TrimSpace(strings.Join(lines, "\n") + "\n\n" + tail)
	}
	return reply, nil
}

func (c *Client) dispatch(ctx context.Context, call functionCall, actions Actions) (ActionResult, error) {
	res := ActionResult{Function: call.Name}
	switch call.Name {
	case fnModifyBudget:
		var a modifyArgs
		if err := c.decodeArgs(call, &a); err != nil {
			res.Summary = fmt.Sprintf("Skipped %s: invalid arguments.", call.Name)
			return res, nil
		}
		delta, err := core.FromFloat(*a.Delta)
		if err != nil {
			slog.Warn("Discarding function call with an out of range amount", "component", "gemini", "function", call.Name, "error", err)
			res.Summary = fmt.Sprintf("Skipped %s: invalid arguments.", call.Name)
			return res, nil
		}
		target := core.TargetType(a.TargetType)
		msg, err := actions.ModifyBudget(ctx, a.AccountName, delta, target)
		if err != nil {
			return res, err
		}
		label := "Budget"
		if target == core.TargetBank {
			label = "Bank"
		}
		res.Result = msg
		res.Summary = fmt.Sprintf("⚡ %s adjusted: %s (%s). %s", label, a.AccountName, delta.Signed(), msg)

	case fnQuickAdd:
		var a quickAddArgs
		if err := c.decodeArgs(call, &a); err != nil {
			res.Summary = fmt.Sprintf("Skipped %s: invalid arguments.", call.Name)
			return res, nil
		}
		amount, err := core.FromFloat(*a.Amount)
		if err != nil {
			slog.Warn("Discarding function call with an out of range amount", "component", "gemini", "function", call.Name, "error", err)
			res.Summary = fmt.Sprintf("Skipped %s: invalid arguments.", call.Name)
			return res, nil
		}
		target := core.TargetType(a.TargetType)
		msg, err := actions.RecordTransaction(ctx, a.Name, amount, a.AccountName, target)
		if err != nil {
			return res, err
		}
		label := "Ledger"
		switch {
		case target == core.TargetBank:
			label = "Bank"
		case core.IsIncome(a.Name):
			label = "Income"
		}
		res.Result = msg
		res.Summary = fmt.Sprintf("⚡ %s update: %q for %s via %s. %s", label, a.Name, amount, a.AccountName, msg)

	default:
		res.Summary = fmt.Sprintf("Skipped unknown action %s.", call.Name)
	}
	return res, nil
}

func (c *Client) decodeArgs(call functionCall, dst any) error {
	if err := json.Unmarshal(call.Args, dst); err != nil {
		slog.Warn("Discarding malformed function call", "component", "gemini", "function", call.Name, "error", err)
		return err
	}
	if err := c.validate.Struct(dst); err != nil {
		slog.Warn("Discarding invalid function call", "component", "gemini", "function", call.Name, "error", err)
		return err
	}
	return nil
}

// functionCalls collects the function calls of the first candidate. The
// API types are re-read through JSON so the argument map keeps its raw form.
func functionCalls(resp *gl.GenerateContentResponse) []functionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []functionCall
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.FunctionCall == nil {
			continue
		}
		raw, err := json.Marshal(p.FunctionCall)
		if err != nil {
			continue
		}
		var fc functionCall
		if err := json.Unmarshal(raw, &fc); err != nil || fc.Name == "" {
			continue
		}
		if len(fc.Args) == 0 {
			fc.Args = json.RawMessage(`{}`)
		}
		calls = append(calls, fc)
	}
	return calls
}
