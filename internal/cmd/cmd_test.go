package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/oppsuggest/internal/adapters/lookup"
)

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetRankFlags() {
	rankFixture, rankStageTable = "", ""
	rankMinScore, rankMargin, rankPrefilterMin = 0, 0, 0
	rankPrefilter = false
	for _, name := range []string{"fixture", "min-score", "margin", "prefilter", "prefilter-min", "stage-table"} {
		if f := rankCmd.Flags().Lookup(name); f != nil {
			f.Changed = false
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		names := map[string]bool{}
		for _, c := range rootCmd.Commands() {
			names[c.Name()] = true
		}
		convey.So(names["rank"], convey.ShouldBeTrue)
		convey.So(names["replay"], convey.ShouldBeTrue)
		convey.So(names["import-lookup"], convey.ShouldBeTrue)
		convey.So(rankCmd.Args(rankCmd, []string{"extra"}), convey.ShouldNotBeNil)
	})
}

func TestRankCommand(t *testing.T) {
	convey.Convey("Given a fixture file", t, func() {
		resetRankFlags()
		path := filepath.Join(t.TempDir(), "call.json")
		convey.So(os.WriteFile(path, []byte(`{
			"name": "widget call",
			"data": {
				"transcript": "pricing for the widget upgrade",
				"user_ids": ["u1"],
				"opportunities": [
					{"id": "o1", "stage": "Engaged", "owner_id": "u1"},
					{"id": "o2", "stage": "Review", "owner_id": "u2"}
				],
				"line_items": [{"opportunity_id": "o1", "product_name": "Widget"}]
			},
			"expect_suggested": "o1"
		}`), 0o600), convey.ShouldBeNil)

		convey.Convey("When ranking it with default thresholds", func() {
			out, err := execute("rank", "--fixture", path)
			convey.So(err, convey.ShouldBeNil)

			var got []rankOutput
			convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
			convey.So(len(got), convey.ShouldEqual, 1)
			convey.So(got[0].Name, convey.ShouldEqual, "widget call")
			convey.So(got[0].Error, convey.ShouldBeEmpty)
			s, ok := got[0].Response.Suggested()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(s.ID, convey.ShouldEqual, "o1")
		})

		convey.Convey("When the margin flag cannot be met", func() {
			out, err := execute("rank", "--fixture", path, "--margin", "0.9")
			convey.So(err, convey.ShouldBeNil)

			var got []rankOutput
			convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
			_, ok := got[0].Response.Suggested()
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(got[0].Response.Metadata.Margin, convey.ShouldEqual, 0.9)
		})

		convey.Convey("When the stage table flag is unknown", func() {
			out, err := execute("rank", "--fixture", path, "--stage-table", "nope")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "unknown stage table")
		})
	})
}

func TestImportLookupCommand(t *testing.T) {
	convey.Convey("Given CSV lookup files", t, func() {
		dir := t.TempDir()
		files := map[string]string{
			lookup.UsersFile:        "Id,Email,Name\nu1,Rep@Example.com,Rep\n",
			lookup.ProductsFile:     "Id,Name\np1,Widget\n",
			lookup.UserProductsFile: "UserId,ProductId\nu1,p1\n",
		}
		for name, body := range files {
			convey.So(os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600), convey.ShouldBeNil)
		}
		db := filepath.Join(dir, "lookup.db")

		convey.Convey("When importing into SQLite", func() {
			out, err := execute("import-lookup", "--data-dir", dir, "--sqlite", db)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "imported")

			convey.Convey("Then the SQLite store answers lookups", func() {
				store, err := lookup.NewSQLiteStore(db)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				u, err := store.UserByEmail(context.Background(), "rep@example.com")
				convey.So(err, convey.ShouldBeNil)
				convey.So(u.ID, convey.ShouldEqual, "u1")
				ps, err := store.UserProducts(context.Background(), []string{"u1"})
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(ps), convey.ShouldEqual, 1)
				convey.So(ps[0].Name, convey.ShouldEqual, "Widget")
			})
		})
	})
}
