// Package salesforce implements a crm.Connector over the Salesforce REST
// query API.
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/internal/domain/stage"
	"github.com/okian/oppsuggest/pkg/logger"
)

// Platform is the connector type tag.
const Platform = "salesforce"

const (
	defaultAPIVersion = "v62.0"
	// MaxPages bounds nextRecordsUrl pagination. A longer result fails
	// rather than ranking a partial candidate set.
	MaxPages = 50
	// createdDateLayout is the timestamp layout of SOQL datetime fields.
	createdDateLayout = "2006-01-02T15:04:05.000-0700"
)

func init() {
	crm.Register(Platform, New)
}

// Connector queries opportunities and line items with SOQL.
type Connector struct {
	key        string
	baseURL    string
	token      string
	apiVersion string
	stageTable string
	client     *http.Client
	log        logger.Logger
}

// New builds a Salesforce connector from a platform entry.
func New(key string, cfg config.PlatformConfig, log logger.Logger) (crm.Connector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("salesforce %s: base_url is required", key)
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	table := cfg.StageTable
	if table == "" {
		table = stage.Salesforce
	}
	return &Connector{
		key:        key,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		apiVersion: version,
		stageTable: table,
		client:     crm.NewHTTPClient(cfg, log),
		log:        log,
	}, nil
}

func (c *Connector) Platform() string   { return Platform }
func (c *Connector) StageTable() string { return c.stageTable }

type queryResponse[T any] struct {
	TotalSize      int    `json:"totalSize"`
	Done           bool   `json:"done"`
	NextRecordsURL string `json:"nextRecordsUrl"`
	Records        []T    `json:"records"`
}

type opportunityRecord struct {
	ID        string `json:"Id"`
	OwnerID   string `json:"OwnerId"`
	Name      string `json:"Name"`
	StageName string `json:"StageName"`
	AccountID string `json:"AccountId"`
	Account   *struct {
		Name string `json:"Name"`
	} `json:"Account"`
	CreatedDate string `json:"CreatedDate"`
}

type lineItemRecord struct {
	ID            string `json:"Id"`
	OpportunityID string `json:"OpportunityId"`
	Product2ID    string `json:"Product2Id"`
	Product2      *struct {
		Name string `json:"Name"`
	} `json:"Product2"`
	Quantity float64 `json:"Quantity"`
}

// FetchOpportunities returns the account's opportunities, newest first.
func (c *Connector) FetchOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error) {
	records, err := query[opportunityRecord](ctx, c, OpportunityQuery(accountID))
	if err != nil {
		return nil, err
	}
	out := make([]model.Opportunity, 0, len(records))
	for _, r := range records {
		opp := model.Opportunity{
			ID:        r.ID,
			Name:      r.Name,
			Stage:     r.StageName,
			OwnerID:   r.OwnerID,
			AccountID: r.AccountID,
		}
		if r.CreatedDate != "" {
			if ts, perr := parseCreatedDate(r.CreatedDate); perr == nil {
				opp.CreatedAt = ts
			} else {
				c.log.Debug(ctx, "unparsable CreatedDate",
					logger.String("opportunity_id", r.ID), logger.String("value", r.CreatedDate))
			}
		}
		out = append(out, opp)
	}
	return out, nil
}

// FetchLineItems returns line items of the account's opportunities.
func (c *Connector) FetchLineItems(ctx context.Context, accountID string, f model.Filter) ([]model.LineItem, error) {
	records, err := query[lineItemRecord](ctx, c, LineItemQuery(accountID, f))
	if err != nil {
		return nil, err
	}
	out := make([]model.LineItem, 0, len(records))
	for _, r := range records {
		item := model.LineItem{
			ID:            r.ID,
			OpportunityID: r.OpportunityID,
			ProductID:     r.Product2ID,
			Quantity:      r.Quantity,
		}
		if r.Product2 != nil {
			item.ProductName = r.Product2.Name
		}
		out = append(out, item)
	}
	return out, nil
}

// OpportunityQuery builds the SOQL statement for an account's opportunities.
func OpportunityQuery(accountID string) string {
	return "SELECT Id, OwnerId, Name, StageName, AccountId, Account.Name, CreatedDate " +
		"FROM Opportunity WHERE AccountId = " + quote(accountID) +
		" ORDER BY CreatedDate DESC"
}

// LineItemQuery builds the SOQL statement for line items, optionally narrowed
// to owners and products.
func LineItemQuery(accountID string, f model.Filter) string {
	var b strings.Builder
	b.WriteString("SELECT Id, OpportunityId, Product2Id, Product2.Name, Quantity ")
	b.WriteString("FROM OpportunityLineItem WHERE Opportunity.AccountId = ")
	b.WriteString(quote(accountID))
	if len(f.OwnerIDs) > 0 {
		b.WriteString(" AND Opportunity.OwnerId IN ")
		b.WriteString(quoteList(f.OwnerIDs))
	}
	if len(f.ProductIDs) > 0 {
		b.WriteString(" AND Product2Id IN ")
		b.WriteString(quoteList(f.ProductIDs))
	}
	b.WriteString(" ORDER BY Opportunity.CreatedDate DESC")
	return b.String()
}

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + soqlEscaper.Replace(s) + "'"
}

func quoteList(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = quote(id)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func parseCreatedDate(s string) (time.Time, error) {
	if ts, err := time.Parse(createdDateLayout, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}

func query[T any](ctx context.Context, c *Connector, soql string) ([]T, error) {
	next := fmt.Sprintf("%s/services/data/%s/query?q=%s", c.baseURL, c.apiVersion, url.QueryEscape(soql))

	var out []T
	for page := 0; next != ""; page++ {
		if page >= MaxPages {
			return nil, fmt.Errorf("%w: salesforce query exceeded %d pages", crm.ErrTruncated, MaxPages)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("salesforce request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		body, err := crm.Do(c.client, req)
		if err != nil {
			return nil, err
		}
		var resp queryResponse[T]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: salesforce query: %v", crm.ErrDecode, err)
		}
		out = append(out, resp.Records...)

		next = ""
		if !resp.Done && resp.NextRecordsURL != "" {
			next = c.baseURL + resp.NextRecordsURL
		}
	}
	return out, nil
}
