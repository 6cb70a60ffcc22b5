// Package acrm implements a crm.Connector over the ACRM XML query endpoint.
// ACRM exposes no line items.
package acrm

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/internal/domain/stage"
	"github.com/okian/oppsuggest/pkg/logger"
)

// Platform is the connector type tag.
const Platform = "acrm"

const (
	accountTable     = "FI"
	opportunityTable = "Y1"
	opportunityField = "6,7,8,15,16,17,43,51"
)

func init() {
	crm.Register(Platform, New)
}

// Connector posts XML queries for the account's opportunity table.
type Connector struct {
	endpoint   string
	username   string
	password   string
	stageTable string
	client     *http.Client
	log        logger.Logger
}

// New builds an ACRM connector from a platform entry. BaseURL is the full
// query endpoint.
func New(key string, cfg config.PlatformConfig, log logger.Logger) (crm.Connector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("acrm %s: base_url is required", key)
	}
	table := cfg.StageTable
	if table == "" {
		table = stage.ACRM
	}
	return &Connector{
		endpoint:   cfg.BaseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		stageTable: table,
		client:     crm.NewHTTPClient(cfg, log),
		log:        log,
	}, nil
}

func (c *Connector) Platform() string   { return Platform }
func (c *Connector) StageTable() string { return c.stageTable }

type queryRequest struct {
	XMLName  xml.Name `xml:"request"`
	Password string   `xml:"pwd,attr"`
	User     string   `xml:"user,attr"`
	Query    struct {
		Tables struct {
			Table struct {
				Name  string `xml:"table,attr"`
				RecID string `xml:"recId,attr"`
				Child struct {
					Name string `xml:"table,attr"`
				} `xml:"table"`
			} `xml:"table"`
		} `xml:"tables"`
		Fields struct {
			Table  string `xml:"table,attr"`
			Fields string `xml:"fields,attr"`
		} `xml:"fields"`
	} `xml:"query"`
}

// BuildQuery renders the XML query for accountID.
func (c *Connector) BuildQuery(accountID string) ([]byte, error) {
	var q queryRequest
	q.Password = c.password
	q.User = c.username
	q.Query.Tables.Table.Name = accountTable
	q.Query.Tables.Table.RecID = accountID
	q.Query.Tables.Table.Child.Name = opportunityTable
	q.Query.Fields.Table = opportunityTable
	q.Query.Fields.Fields = opportunityField
	return xml.Marshal(q)
}

// FetchOpportunities posts the query and collects every Opportunity element
// that carries an id attribute, at any depth.
func (c *Connector) FetchOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error) {
	payload, err := c.BuildQuery(accountID)
	if err != nil {
		return nil, fmt.Errorf("acrm encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("acrm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/xml")

	body, err := crm.Do(c.client, req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	opps, err := ParseOpportunities(body)
	if err != nil {
		return nil, err
	}
	for i := range opps {
		opps[i].AccountID = accountID
	}
	c.log.Debug(ctx, "acrm opportunities parsed",
		logger.String("account_id", accountID), logger.Int("count", len(opps)))
	return opps, nil
}

// FetchLineItems always returns nil; ACRM queries carry no product lines.
func (c *Connector) FetchLineItems(context.Context, string, model.Filter) ([]model.LineItem, error) {
	return nil, nil
}

// ParseOpportunities walks the document and maps each <Opportunity id="..">
// element: its child <Opportunity> text is the name and <Status> the stage.
func ParseOpportunities(doc []byte) ([]model.Opportunity, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var out []model.Opportunity
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("%w: acrm xml: %v", crm.ErrDecode, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Opportunity" {
			continue
		}
		id, ok := attr(start, "id")
		if !ok {
			continue
		}
		opp, err := decodeRecord(dec, start, id)
		if err != nil {
			return nil, err
		}
		out = append(out, opp)
	}
}

type record struct {
	Name   *string `xml:"Opportunity"`
	Status *string `xml:"Status"`
}

func decodeRecord(dec *xml.Decoder, start xml.StartElement, id string) (model.Opportunity, error) {
	var r record
	if err := dec.DecodeElement(&r, &start); err != nil {
		return model.Opportunity{}, fmt.Errorf("%w: acrm opportunity %s: %v", crm.ErrDecode, id, err)
	}
	opp := model.Opportunity{ID: id}
	if r.Name != nil {
		opp.Name = strings.TrimSpace(*r.Name)
	}
	if r.Status != nil {
		opp.Stage = strings.TrimSpace(*r.Status)
	}
	return opp, nil
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
