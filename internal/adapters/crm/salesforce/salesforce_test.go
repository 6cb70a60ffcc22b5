package salesforce_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/oppsuggest/internal/adapters/crm"
	"github.com/okian/oppsuggest/internal/adapters/crm/salesforce"
	"github.com/okian/oppsuggest/internal/config"
	"github.com/okian/oppsuggest/internal/domain/model"
	"github.com/okian/oppsuggest/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestQueries(t *testing.T) {
	Convey("Given SOQL builders", t, func() {
		Convey("The opportunity query filters by account and orders newest first", func() {
			q := salesforce.OpportunityQuery("001A")
			So(q, ShouldStartWith, "SELECT Id, OwnerId, Name, StageName, AccountId, Account.Name, CreatedDate FROM Opportunity")
			So(q, ShouldContainSubstring, "WHERE AccountId = '001A'")
			So(q, ShouldEndWith, "ORDER BY CreatedDate DESC")
		})

		Convey("Quotes in ids are escaped", func() {
			q := salesforce.OpportunityQuery(`x' OR Name != '`)
			So(q, ShouldContainSubstring, `'x\' OR Name != \''`)
		})

		Convey("The line item query adds owner and product filters", func() {
			q := salesforce.LineItemQuery("001A", model.Filter{OwnerIDs: []string{"u1", "u2"}, ProductIDs: []string{"p1"}})
			So(q, ShouldContainSubstring, "Opportunity.AccountId = '001A'")
			So(q, ShouldContainSubstring, "AND Opportunity.OwnerId IN ('u1', 'u2')")
			So(q, ShouldContainSubstring, "AND Product2Id IN ('p1')")
			So(q, ShouldEndWith, "ORDER BY Opportunity.CreatedDate DESC")
		})

		Convey("Empty filters add no clauses", func() {
			q := salesforce.LineItemQuery("001A", model.Filter{})
			So(q, ShouldNotContainSubstring, "OwnerId IN")
			So(q, ShouldNotContainSubstring, "Product2Id IN")
		})
	})
}

func TestConnector(t *testing.T) {
	Convey("Given a Salesforce API", t, func() {
		var queries, auth []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = append(auth, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			switch {
			case r.URL.Path == "/services/data/v62.0/query/next":
				fmt.Fprint(w, `{"done":true,"records":[{"Id":"o2","OwnerId":"u9","Name":"Renewal","StageName":"Closed Won","AccountId":"A"}]}`)
			case r.URL.Path == "/services/data/v62.0/query":
				q := r.URL.Query().Get("q")
				queries = append(queries, q)
				if strings.Contains(q, "FROM OpportunityLineItem") {
					fmt.Fprint(w, `{"done":true,"records":[{"Id":"li1","OpportunityId":"o1","Product2Id":"p1","Product2":{"Name":"Widget Pro"},"Quantity":3}]}`)
					return
				}
				if strings.Contains(q, "'fail'") {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				fmt.Fprint(w, `{"done":false,"nextRecordsUrl":"/services/data/v62.0/query/next","records":[{"Id":"o1","OwnerId":"u1","Name":"Widget deal","StageName":"Proposal","AccountId":"A","Account":{"Name":"Acme"},"CreatedDate":"2024-03-01T10:00:00.000+0000"}]}`)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		conn, err := salesforce.New("salesforce", config.PlatformConfig{BaseURL: srv.URL + "/", AccessToken: "tok"}, logger.Nop())
		So(err, ShouldBeNil)
		So(conn.Platform(), ShouldEqual, salesforce.Platform)
		So(conn.StageTable(), ShouldEqual, "salesforce")

		Convey("Opportunities are paged and mapped", func() {
			opps, err := conn.FetchOpportunities(context.Background(), "A")
			So(err, ShouldBeNil)
			So(opps, ShouldHaveLength, 2)
			So(opps[0].ID, ShouldEqual, "o1")
			So(opps[0].Stage, ShouldEqual, "Proposal")
			So(opps[0].OwnerID, ShouldEqual, "u1")
			So(opps[0].CreatedAt.Year(), ShouldEqual, 2024)
			So(opps[1].ID, ShouldEqual, "o2")
			So(opps[1].CreatedAt.IsZero(), ShouldBeTrue)
			So(auth, ShouldResemble, []string{"Bearer tok", "Bearer tok"})
		})

		Convey("Line items carry the product name", func() {
			items, err := conn.FetchLineItems(context.Background(), "A", model.Filter{OwnerIDs: []string{"u1"}})
			So(err, ShouldBeNil)
			So(items, ShouldHaveLength, 1)
			So(items[0].ProductName, ShouldEqual, "Widget Pro")
			So(items[0].Quantity, ShouldEqual, 3)
			So(queries[len(queries)-1], ShouldContainSubstring, "Opportunity.OwnerId IN ('u1')")
		})

		Convey("A server error is reported as ErrUpstream", func() {
			_, err := conn.FetchOpportunities(context.Background(), "fail")
			So(errors.Is(err, crm.ErrUpstream), ShouldBeTrue)
		})
	})

	Convey("Given a Salesforce API that never finishes paging", t, func() {
		var hits int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits++
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"done":false,"nextRecordsUrl":"/services/data/v62.0/query/more","records":[{"Id":"o","StageName":"Proposal"}]}`)
		}))
		defer srv.Close()

		conn, err := salesforce.New("salesforce", config.PlatformConfig{BaseURL: srv.URL}, logger.Nop())
		So(err, ShouldBeNil)

		opps, err := conn.FetchOpportunities(context.Background(), "A")
		So(errors.Is(err, crm.ErrTruncated), ShouldBeTrue)
		So(opps, ShouldBeNil)
		So(hits, ShouldEqual, salesforce.MaxPages)
	})

	Convey("A missing base url is rejected", t, func() {
		_, err := salesforce.New("salesforce", config.PlatformConfig{}, logger.Nop())
		So(err, ShouldNotBeNil)
	})

	Convey("The connector registers itself", t, func() {
		So(crm.ListFactories(), ShouldContain, salesforce.Platform)
	})
}
