package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jwebster45206/script-runner/pkg/game"
)

const (
	codeCooldown         = 499
	codeAlreadyEquipped  = 485
	codeAlreadySatisfied = 490
	codeNoTarget         = 598
)

var cooldownSecondsRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?) seconds?`)

// ArtifactsClient implements game.API against the Artifacts MMO HTTP API.
type ArtifactsClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	// last seen per-skill XP totals, used to attribute XP from gathering
	// and crafting responses to a skill
	mu      sync.Mutex
	skillXP map[string]map[string]int
}

var (
	_ game.API          = (*ArtifactsClient)(nil)
	_ game.Locator      = (*ArtifactsClient)(nil)
	_ game.SlotResolver = (*ArtifactsClient)(nil)
)

// NewArtifactsClient creates a client for baseURL authenticated with token.
func NewArtifactsClient(baseURL, token string, logger *slog.Logger) *ArtifactsClient {
	return &ArtifactsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		skillXP: make(map[string]map[string]int),
	}
}

type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiDrop struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

type actionResponse struct {
	Data struct {
		Cooldown  game.Cooldown   `json:"cooldown"`
		Character json.RawMessage `json:"character"`
		Details   *struct {
			XP    int       `json:"xp"`
			Items []apiDrop `json:"items"`
		} `json:"details"`
		Fight *struct {
			XP     int       `json:"xp"`
			Gold   int       `json:"gold"`
			Drops  []apiDrop `json:"drops"`
			Turns  int       `json:"turns"`
			Result string    `json:"result"`
		} `json:"fight"`
	} `json:"data"`
}

// Character fetches the public snapshot of a character.
func (a *ArtifactsClient) Character(ctx context.Context, name string) (*game.Character, error) {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/characters/"+url.PathEscape(name), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch character %s: %w", name, err)
	}
	c, xp, err := decodeCharacter(resp.Data)
	if err != nil {
		return nil, err
	}
	a.rememberXP(name, xp)
	return c, nil
}

// Do performs one action. Non-2xx responses are returned as *game.ActionError.
func (a *ArtifactsClient) Do(ctx context.Context, name string, act game.Action) (*game.ActionResult, error) {
	path := fmt.Sprintf("/my/%s/action/%s", url.PathEscape(name), act.Kind)

	var resp actionResponse
	if err := a.do(ctx, http.MethodPost, path, actionBody(act), &resp); err != nil {
		return nil, err
	}

	c, xp, err := decodeCharacter(resp.Data.Character)
	if err != nil {
		return nil, malformed(http.StatusOK, err)
	}
	res := &game.ActionResult{
		Character: c,
		Cooldown:  resp.Data.Cooldown,
	}
	if res.Cooldown.Expiration.IsZero() && res.Cooldown.RemainingSeconds > 0 {
		res.Cooldown.Expiration = time.Now().Add(time.Duration(res.Cooldown.RemainingSeconds * float64(time.Second)))
	}
	if c.CooldownExpiration.IsZero() {
		c.CooldownExpiration = res.Cooldown.Expiration
	}

	if d := resp.Data.Details; d != nil {
		res.XP = d.XP
		res.Items = toDrops(d.Items)
		if d.XP > 0 {
			res.Skill = a.grownSkill(name, xp)
		}
	}
	if f := resp.Data.Fight; f != nil {
		res.Skill = "combat"
		res.XP = f.XP
		res.Gold = f.Gold
		res.Items = toDrops(f.Drops)
		res.Fight = &game.FightResult{Result: f.Result, Turns: f.Turns}
	}
	a.rememberXP(name, xp)

	a.logger.Debug("Action completed", "character", name, "action", act.String(), "cooldown_s", res.Cooldown.RemainingSeconds)
	return res, nil
}

// Locate returns the coordinates of the first map tile holding code.
func (a *ArtifactsClient) Locate(ctx context.Context, code string) (int, int, error) {
	var resp struct {
		Data []struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"data"`
	}
	q := url.Values{"content_code": {code}}
	if err := a.do(ctx, http.MethodGet, "/maps?"+q.Encode(), nil, &resp); err != nil {
		return 0, 0, fmt.Errorf("failed to locate %s: %w", code, err)
	}
	if len(resp.Data) == 0 {
		return 0, 0, fmt.Errorf("%s: %w", code, game.ErrNotFound)
	}
	return resp.Data[0].X, resp.Data[0].Y, nil
}

// ItemSlot returns the equipment slot an item goes into.
func (a *ArtifactsClient) ItemSlot(ctx context.Context, code string) (string, error) {
	var resp struct {
		Data struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/items/"+url.PathEscape(code), nil, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch item %s: %w", code, err)
	}
	switch resp.Data.Type {
	case "":
		return "", fmt.Errorf("item %s: %w", code, game.ErrNotFound)
	case "ring":
		return "ring1", nil
	case "artifact":
		return "artifact1", nil
	case "utility":
		return "utility1", nil
	}
	return resp.Data.Type, nil
}

func (a *ArtifactsClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &game.ActionError{Class: game.FailureGeneric, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &game.ActionError{Class: game.FailureGeneric, Code: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformed(resp.StatusCode, err)
	}
	return nil
}

// malformed reports a 2xx reply whose body could not be decoded.
func malformed(status int, err error) *game.ActionError {
	return &game.ActionError{Class: game.FailureMalformed, Code: status, Message: "failed to decode response: " + err.Error()}
}

// classify maps an HTTP failure to an ActionError.
func classify(status int, body []byte) *game.ActionError {
	msg := strings.TrimSpace(string(body))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
		msg = apiErr.Error.Message
	}

	ae := &game.ActionError{Class: game.FailureGeneric, Code: status, Message: msg}
	switch status {
	case codeCooldown:
		ae.Class = game.FailureCooldown
		if m := cooldownSecondsRe.FindStringSubmatch(msg); m != nil {
			if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
				ae.Remaining = time.Duration(secs * float64(time.Second))
			}
		}
	case codeAlreadySatisfied, codeAlreadyEquipped:
		ae.Class = game.FailureAlreadySatisfied
	case codeNoTarget:
		ae.Class = game.FailureNoTarget
	}
	return ae
}

// actionBody builds the JSON body for an action, or nil for bodiless actions.
func actionBody(act game.Action) any {
	qty := max(act.Quantity, 1)
	switch act.Kind {
	case game.ActionMove:
		return map[string]int{"x": act.X, "y": act.Y}
	case game.ActionCraft, game.ActionRecycle, game.ActionDepositItem, game.ActionWithdrawItem,
		game.ActionUse, game.ActionTaskTrade, game.ActionNPCBuy, game.ActionNPCSell:
		return map[string]any{"code": act.Code, "quantity": qty}
	case game.ActionDepositGold, game.ActionWithdrawGold:
		return map[string]int{"quantity": act.Quantity}
	case game.ActionEquip:
		return map[string]any{"code": act.Code, "slot": act.Slot, "quantity": qty}
	case game.ActionUnequip:
		return map[string]any{"slot": act.Slot, "quantity": qty}
	case game.ActionMarketSell:
		return map[string]any{"code": act.Code, "quantity": qty, "price": act.Price}
	}
	return nil
}

// decodeCharacter reads the API's flat character schema: skill levels and XP
// arrive as <skill>_level / <skill>_xp and equipment as <slot>_slot.
func decodeCharacter(raw json.RawMessage) (*game.Character, map[string]int, error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("response has no character")
	}
	var c game.Character
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, nil, fmt.Errorf("failed to decode character: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil, fmt.Errorf("failed to decode character: %w", err)
	}

	c.Skills = make(map[string]int)
	c.Equipment = make(map[string]string)
	xp := make(map[string]int)
	for k, v := range fields {
		switch {
		case strings.HasSuffix(k, "_level"):
			var n int
			if json.Unmarshal(v, &n) == nil {
				c.Skills[strings.TrimSuffix(k, "_level")] = n
			}
		case strings.HasSuffix(k, "_xp") && !strings.HasSuffix(k, "max_xp"):
			var n int
			if json.Unmarshal(v, &n) == nil {
				xp[strings.TrimSuffix(k, "_xp")] = n
			}
		case strings.HasSuffix(k, "_slot"):
			var code string
			if json.Unmarshal(v, &code) == nil && code != "" {
				c.Equipment[strings.TrimSuffix(k, "_slot")] = code
			}
		}
	}

	inv := c.Inventory[:0]
	for _, s := range c.Inventory {
		if s.Code != "" && s.Quantity > 0 {
			inv = append(inv, s)
		}
	}
	c.Inventory = inv
	return &c, xp, nil
}

func toDrops(in []apiDrop) []game.Drop {
	out := make([]game.Drop, 0, len(in))
	for _, d := range in {
		out = append(out, game.Drop{Code: d.Code, Quantity: d.Quantity})
	}
	return out
}

func (a *ArtifactsClient) rememberXP(name string, xp map[string]int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skillXP[name] = xp
}

// grownSkill returns the skill whose XP total grew since the last snapshot.
func (a *ArtifactsClient) grownSkill(name string, xp map[string]int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, ok := a.skillXP[name]
	if !ok {
		return ""
	}
	best, gain := "", 0
	for skill, n := range xp {
		if d := n - prev[skill]; d > gain {
			best, gain = skill, d
		}
	}
	return best
}
