// Package pivotal implements a crm.Connector over the Pivotal form retrieve
// action. Pivotal exposes no line items.
package pivotal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/internal/domain/stage"
	"github.com/okian/oppsuggest/pkg/logger"
)

// Platform is the connector type tag.
const Platform = "pivotal"

const retrievePath = "/PivotalUx/rest/forms/formData/actions/retrieve"

func init() {
	crm.Register(Platform, New)
}

// Connector reads the account form and its secondary opportunity rows.
type Connector struct {
	baseURL     string
	token       string
	form        string
	environment string
	stageTable  string
	client      *http.Client
	log         logger.Logger
}

// New builds a Pivotal connector from a platform entry.
func New(key string, cfg config.PlatformConfig, log logger.Logger) (crm.Connector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("pivotal %s: base_url is required", key)
	}
	if cfg.FormName == "" {
		return nil, fmt.Errorf("pivotal %s: form_name is required", key)
	}
	table := cfg.StageTable
	if table == "" {
		table = stage.Pivotal
	}
	return &Connector{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.AccessToken,
		form:        cfg.FormName,
		environment: cfg.Environment,
		stageTable:  table,
		client:      crm.NewHTTPClient(cfg, log),
		log:         log,
	}, nil
}

func (c *Connector) Platform() string   { return Platform }
func (c *Connector) StageTable() string { return c.stageTable }

type retrieveResponse struct {
	Success bool `json:"success"`
	Payload struct {
		Data struct {
			Primary struct {
				Opportunities []opportunityRow `json:"Opportunities__Secondary"`
			} `json:"primary"`
		} `json:"data"`
	} `json:"payload"`
}

type opportunityRow struct {
	ID     string          `json:"SFA_Opportunity_Id"`
	Name   string          `json:"Opportunity_Name"`
	Status json.RawMessage `json:"Status"`
}

// FetchOpportunities retrieves the account form. An empty body or an
// unsuccessful retrieve yields no opportunities.
func (c *Connector) FetchOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error) {
	q := url.Values{}
	q.Set("recordId", accountID)
	q.Set("form", c.form)
	endpoint := c.baseURL + retrievePath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("pivotal request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.environment != "" {
		req.Header.Set("pivotalEnvironmentName", c.environment)
	}

	body, err := crm.Do(c.client, req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.log.Debug(ctx, "empty retrieve response", logger.String("account_id", accountID))
		return nil, nil
	}

	var resp retrieveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: pivotal retrieve: %v", crm.ErrDecode, err)
	}
	if !resp.Success {
		c.log.Debug(ctx, "retrieve unsuccessful", logger.String("account_id", accountID))
		return nil, nil
	}

	rows := resp.Payload.Data.Primary.Opportunities
	out := make([]model.Opportunity, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Opportunity{
			ID:        r.ID,
			Name:      r.Name,
			Stage:     statusLabel(r.Status),
			AccountID: accountID,
		})
	}
	return out, nil
}

// FetchLineItems always returns nil; Pivotal forms carry no product lines.
func (c *Connector) FetchLineItems(context.Context, string, model.Filter) ([]model.LineItem, error) {
	return nil, nil
}

// statusLabel renders the status code as a stage label whether it arrives
// as a JSON number or string.
func statusLabel(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err == nil {
			return str
		}
	}
	return s
}
